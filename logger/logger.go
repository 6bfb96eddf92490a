package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/relmap/relmap/utils"
)

// ErrRecordNotFound record not found error
var ErrRecordNotFound = errors.New("record not found")

// Colors
const (
	Reset       = "\033[0m"
	Red         = "\033[31m"
	Green       = "\033[32m"
	Yellow      = "\033[33m"
	Blue        = "\033[34m"
	Magenta     = "\033[35m"
	Cyan        = "\033[36m"
	White       = "\033[37m"
	BlueBold    = "\033[34;1m"
	MagentaBold = "\033[35;1m"
	RedBold     = "\033[31;1m"
	YellowBold  = "\033[33;1m"
)

// LogLevel log level
type LogLevel int

const (
	// Silent silent log level
	Silent LogLevel = iota + 1
	// Error error log level
	Error
	// Warn warn log level
	Warn
	// Info info log level
	Info
)

// Writer log writer interface
type Writer interface {
	Printf(string, ...interface{})
}

// Config logger config
type Config struct {
	SlowThreshold             time.Duration
	Colorful                  bool
	IgnoreRecordNotFoundError bool
	ParameterizedQueries      bool
	LogLevel                  LogLevel
}

// Interface logger interface
type Interface interface {
	LogMode(LogLevel) Interface
	Info(context.Context, string, ...interface{})
	Warn(context.Context, string, ...interface{})
	Error(context.Context, string, ...interface{})
	Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error)
}

// ParamsFilter is implemented by loggers that hide statement parameters
type ParamsFilter interface {
	ParamsFilter(ctx context.Context, sql string, params ...interface{}) (string, []interface{})
}

var (
	// Discard logger will print any log to io.Discard
	Discard = New(log.New(io.Discard, "", log.LstdFlags), Config{})
	// Default logger, level taken from RELMAP_LOG_LEVEL
	Default = New(log.New(os.Stdout, "\r\n", log.LstdFlags), Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  LevelFromEnv(os.Getenv("RELMAP_LOG_LEVEL"), Warn),
		IgnoreRecordNotFoundError: false,
		Colorful:                  true,
	})
)

// LevelFromEnv parses silent/error/warn/info, falling back to def
func LevelFromEnv(value string, def LogLevel) LogLevel {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "silent":
		return Silent
	case "error":
		return Error
	case "warn":
		return Warn
	case "info":
		return Info
	}
	return def
}

// New initialize logger
func New(writer Writer, config Config) Interface {
	var (
		infoStr      = "%s\n[info] "
		warnStr      = "%s\n[warn] "
		errStr       = "%s\n[error] "
		traceStr     = "%s\n[%.3fms] [rows:%v] %s"
		traceWarnStr = "%s %s\n[%.3fms] [rows:%v] %s"
		traceErrStr  = "%s %s\n[%.3fms] [rows:%v] %s"
	)

	if config.Colorful {
		infoStr = Green + "%s\n" + Reset + Green + "[info] " + Reset
		warnStr = BlueBold + "%s\n" + Reset + Magenta + "[warn] " + Reset
		errStr = Magenta + "%s\n" + Reset + Red + "[error] " + Reset
		traceStr = Green + "%s\n" + Reset + Yellow + "[%.3fms] " + BlueBold + "[rows:%v]" + Reset + " %s"
		traceWarnStr = Green + "%s " + Yellow + "%s\n" + Reset + RedBold + "[%.3fms] " + Yellow + "[rows:%v]" + Magenta + " %s" + Reset
		traceErrStr = RedBold + "%s " + MagentaBold + "%s\n" + Reset + Yellow + "[%.3fms] " + BlueBold + "[rows:%v]" + Reset + " %s"
	}

	return &logger{
		Writer:       writer,
		Config:       config,
		infoStr:      infoStr,
		warnStr:      warnStr,
		errStr:       errStr,
		traceStr:     traceStr,
		traceWarnStr: traceWarnStr,
		traceErrStr:  traceErrStr,
	}
}

type logger struct {
	Writer
	Config
	infoStr, warnStr, errStr            string
	traceStr, traceErrStr, traceWarnStr string
}

// LogMode log mode
func (l *logger) LogMode(level LogLevel) Interface {
	newlogger := *l
	newlogger.LogLevel = level
	return &newlogger
}

// Info print info
func (l *logger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		l.Printf(l.infoStr+msg, append([]interface{}{utils.FileWithLineNum()}, data...)...)
	}
}

// Warn print warn messages
func (l *logger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		l.Printf(l.warnStr+msg, append([]interface{}{utils.FileWithLineNum()}, data...)...)
	}
}

// Error print error messages
func (l *logger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		l.Printf(l.errStr+msg, append([]interface{}{utils.FileWithLineNum()}, data...)...)
	}
}

// Trace print a storage statement with its duration and affected rows
func (l *logger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	event, ok := l.Config.event(begin, fc, err)
	if !ok {
		return
	}

	rows := interface{}(event.rows)
	if event.rows == -1 {
		rows = "-"
	}

	switch event.level {
	case Error:
		l.Printf(l.traceErrStr, utils.FileWithLineNum(), event.err, event.millis(), rows, event.sql)
	case Warn:
		l.Printf(l.traceWarnStr, utils.FileWithLineNum(), event.slowLog, event.millis(), rows, event.sql)
	default:
		l.Printf(l.traceStr, utils.FileWithLineNum(), event.millis(), rows, event.sql)
	}
}

// ParamsFilter filter params
func (l *logger) ParamsFilter(ctx context.Context, sql string, params ...interface{}) (string, []interface{}) {
	return l.Config.ParamsFilter(ctx, sql, params...)
}

// ParamsFilter drops parameters when ParameterizedQueries is set
func (c Config) ParamsFilter(ctx context.Context, sql string, params ...interface{}) (string, []interface{}) {
	if c.ParameterizedQueries {
		return sql, nil
	}
	return sql, params
}

type traceEvent struct {
	level   LogLevel
	elapsed time.Duration
	sql     string
	rows    int64
	err     error
	slowLog string
}

func (e traceEvent) millis() float64 {
	return float64(e.elapsed.Nanoseconds()) / 1e6
}

// event decides whether and at which level a trace is reported; shared by
// every adapter so they agree on filtering
func (c Config) event(begin time.Time, fc func() (string, int64), err error) (traceEvent, bool) {
	if c.LogLevel <= Silent {
		return traceEvent{}, false
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && c.LogLevel >= Error && (!errors.Is(err, ErrRecordNotFound) || !c.IgnoreRecordNotFoundError):
		sql, rows := fc()
		return traceEvent{level: Error, elapsed: elapsed, sql: sql, rows: rows, err: err}, true
	case elapsed > c.SlowThreshold && c.SlowThreshold != 0 && c.LogLevel >= Warn:
		sql, rows := fc()
		return traceEvent{level: Warn, elapsed: elapsed, sql: sql, rows: rows, slowLog: fmt.Sprintf("SLOW SQL >= %v", c.SlowThreshold)}, true
	case c.LogLevel == Info:
		sql, rows := fc()
		return traceEvent{level: Info, elapsed: elapsed, sql: sql, rows: rows}, true
	}
	return traceEvent{}, false
}
