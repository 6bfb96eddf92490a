package logger

import (
	"context"
	"os"
	"time"

	"github.com/relmap/relmap/utils"
	"github.com/rs/zerolog"
)

// ZerologLogger implements Interface using zerolog
type ZerologLogger struct {
	Config
	Logger zerolog.Logger
}

// NewZerologLogger creates a new logger using zerolog
func NewZerologLogger(logger zerolog.Logger, config Config) Interface {
	return &ZerologLogger{Logger: logger, Config: config}
}

// NewConsoleZerologLogger writes human readable lines to stdout
func NewConsoleZerologLogger(config Config) Interface {
	writer := zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stdout
		w.TimeFormat = time.RFC3339
	})
	return NewZerologLogger(zerolog.New(writer).Level(ZerologLevel(config.LogLevel)).With().Timestamp().Logger(), config)
}

// LogMode sets the log level
func (l *ZerologLogger) LogMode(level LogLevel) Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *ZerologLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		l.Logger.Info().Ctx(ctx).Str("file", utils.FileWithLineNum()).Msgf(msg, data...)
	}
}

func (l *ZerologLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		l.Logger.Warn().Ctx(ctx).Str("file", utils.FileWithLineNum()).Msgf(msg, data...)
	}
}

func (l *ZerologLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		l.Logger.Error().Ctx(ctx).Str("file", utils.FileWithLineNum()).Msgf(msg, data...)
	}
}

// Trace logs a storage statement
func (l *ZerologLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	event, ok := l.event(begin, fc, err)
	if !ok {
		return
	}

	var e *zerolog.Event
	switch event.level {
	case Error:
		e = l.Logger.Error().Err(event.err)
	case Warn:
		e = l.Logger.Warn().Dur("slow_threshold", l.SlowThreshold)
	default:
		e = l.Logger.Info()
	}

	e = e.Ctx(ctx).
		Str("file", utils.FileWithLineNum()).
		Float64("elapsed_ms", event.millis()).
		Str("sql", event.sql)
	if event.rows != -1 {
		e = e.Int64("rows", event.rows)
	}

	switch event.level {
	case Error:
		e.Msg("statement failed")
	case Warn:
		e.Msg("slow statement")
	default:
		e.Msg("statement executed")
	}
}

// ZerologLevel converts LogLevel to zerolog.Level
func ZerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case Silent:
		return zerolog.Disabled
	case Error:
		return zerolog.ErrorLevel
	case Warn:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
