package logger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/relmap/relmap/utils"
)

type slogLogger struct {
	Config
	Logger *slog.Logger
}

// NewSlogLogger creates a new logger writing records to a log/slog handler
func NewSlogLogger(logger *slog.Logger, config Config) Interface {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogLogger{Logger: logger, Config: config}
}

func (l *slogLogger) LogMode(level LogLevel) Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *slogLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		l.log(ctx, slog.LevelInfo, fmt.Sprintf(msg, data...))
	}
}

func (l *slogLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		l.log(ctx, slog.LevelWarn, fmt.Sprintf(msg, data...))
	}
}

func (l *slogLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		l.log(ctx, slog.LevelError, fmt.Sprintf(msg, data...))
	}
}

func (l *slogLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	event, ok := l.event(begin, fc, err)
	if !ok {
		return
	}

	fields := []slog.Attr{
		slog.String("duration", fmt.Sprintf("%.3fms", event.millis())),
		slog.String("sql", event.sql),
	}
	if event.rows != -1 {
		fields = append(fields, slog.Int64("rows", event.rows))
	}

	switch event.level {
	case Error:
		fields = append(fields, slog.String("error", event.err.Error()))
		l.log(ctx, slog.LevelError, "statement failed", slog.Attr{Key: "trace", Value: slog.GroupValue(fields...)})
	case Warn:
		fields = append(fields, slog.Duration("slow_threshold", l.SlowThreshold))
		l.log(ctx, slog.LevelWarn, "slow statement", slog.Attr{Key: "trace", Value: slog.GroupValue(fields...)})
	default:
		l.log(ctx, slog.LevelInfo, "statement executed", slog.Attr{Key: "trace", Value: slog.GroupValue(fields...)})
	}
}

func (l *slogLogger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}

	if !l.Logger.Enabled(ctx, level) {
		return
	}

	r := slog.NewRecord(time.Now(), level, msg, utils.CallerFrame().PC)
	r.Add(args...)
	_ = l.Logger.Handler().Handle(ctx, r)
}
