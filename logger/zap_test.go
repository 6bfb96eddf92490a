package logger

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newBufferedZap(buf *bytes.Buffer) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(buf),
		zapcore.DebugLevel,
	)
	return zap.New(core)
}

func TestNewZapLogger(t *testing.T) {
	var buf bytes.Buffer

	zapAdapter := NewZapLogger(newBufferedZap(&buf), Config{
		LogLevel:      Info,
		SlowThreshold: 100 * time.Millisecond,
	})

	require.NotNil(t, zapAdapter)
	assert.Equal(t, Info, zapAdapter.(*ZapLogger).LogLevel)
	assert.Equal(t, 100*time.Millisecond, zapAdapter.(*ZapLogger).SlowThreshold)
	assert.NotNil(t, NewZapLogger(nil, Config{}).(*ZapLogger).Logger)
}

func TestZapLogger_LogMode(t *testing.T) {
	logger := NewZapLogger(zap.NewNop(), Config{LogLevel: Error})

	infoLogger := logger.LogMode(Info)
	assert.Equal(t, Info, infoLogger.(*ZapLogger).LogLevel)
	assert.Equal(t, Error, logger.(*ZapLogger).LogLevel)
}

func TestZapLogger_LogLevels(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := NewZapLogger(newBufferedZap(&buf), Config{LogLevel: Warn})

	logger.Info(ctx, "planned %d operations", 3)
	assert.Empty(t, buf.String())

	logger.Warn(ctx, "lookup of %s skipped", "posts")
	assert.Contains(t, buf.String(), "lookup of posts skipped")
	assert.Contains(t, buf.String(), `"level":"warn"`)

	buf.Reset()
	logger.Error(ctx, "rollback failed: %v", assert.AnError)
	assert.Contains(t, buf.String(), assert.AnError.Error())
}

func TestZapLogger_Trace(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := NewZapLogger(newBufferedZap(&buf), Config{
		LogLevel:      Info,
		SlowThreshold: 100 * time.Millisecond,
	})

	t.Run("Normal trace", func(t *testing.T) {
		buf.Reset()
		logger.Trace(ctx, time.Now(), func() (string, int64) {
			return "INSERT INTO posts (title) VALUES (?)", 1
		}, nil)

		output := buf.String()
		assert.Contains(t, output, "INSERT INTO posts (title) VALUES (?)")
		assert.Contains(t, output, `"rows":1`)
		assert.Contains(t, output, "duration")
	})

	t.Run("Slow statement", func(t *testing.T) {
		buf.Reset()
		logger.Trace(ctx, time.Now().Add(-150*time.Millisecond), func() (string, int64) {
			return "DELETE FROM post_tags", 1000
		}, nil)

		output := buf.String()
		assert.Contains(t, output, "slow statement")
		assert.Contains(t, output, "slow_threshold")
	})

	t.Run("Error trace", func(t *testing.T) {
		buf.Reset()
		logger.Trace(ctx, time.Now(), func() (string, int64) {
			return "UPDATE posts SET title = ?", -1
		}, assert.AnError)

		output := buf.String()
		assert.Contains(t, output, "statement failed")
		assert.Contains(t, output, assert.AnError.Error())
		assert.NotContains(t, output, `"rows"`)
	})

	t.Run("Record not found error with ignore", func(t *testing.T) {
		buf.Reset()
		logger := logger.LogMode(Error)
		logger.(*ZapLogger).IgnoreRecordNotFoundError = true

		logger.Trace(ctx, time.Now(), func() (string, int64) {
			return "SELECT * FROM posts WHERE id = ?", 0
		}, ErrRecordNotFound)
		assert.Empty(t, buf.String())
	})

	t.Run("Silent", func(t *testing.T) {
		buf.Reset()
		logger.LogMode(Silent).Trace(ctx, time.Now(), func() (string, int64) {
			t.Fatal("statement must not be rendered when silent")
			return "", 0
		}, assert.AnError)
		assert.Empty(t, buf.String())
	})
}

func TestZapLevel(t *testing.T) {
	assert.Equal(t, zapcore.DPanicLevel, ZapLevel(Silent))
	assert.Equal(t, zapcore.ErrorLevel, ZapLevel(Error))
	assert.Equal(t, zapcore.WarnLevel, ZapLevel(Warn))
	assert.Equal(t, zapcore.InfoLevel, ZapLevel(Info))
}
