package logging

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type contextKey struct{}

var loggerKey = contextKey{}

var (
	defaultLogger     *zap.Logger
	defaultLoggerOnce sync.Once
	confMu            sync.Mutex
)

var conf = &Config{
	Level: zapcore.InfoLevel,
}

type Config struct {
	Level    zapcore.Level
	FilePath string
}

// SetConfig must be called before the first DefaultLogger call to take effect.
func SetConfig(c *Config) {
	confMu.Lock()
	defer confMu.Unlock()
	conf = &Config{
		Level:    c.Level,
		FilePath: c.FilePath,
	}
}

func NewLogger(conf *Config) *zap.Logger {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	ec.CallerKey = ""
	ec.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("02/01/2006 03:04 PM"))
	}

	level := zap.NewAtomicLevelAt(conf.Level)

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(ec), zapcore.AddSync(os.Stdout), level),
	}

	if conf.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   conf.FilePath,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     15,
			Compress:   true,
		}
		fc := zap.NewProductionEncoderConfig()
		fc.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fc), zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...))
}

func DefaultLogger() *zap.Logger {
	defaultLoggerOnce.Do(func() {
		confMu.Lock()
		c := conf
		confMu.Unlock()
		defaultLogger = NewLogger(c)
	})
	return defaultLogger
}

func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the request scoped logger, falling back to the default one.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return DefaultLogger()
	}
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return DefaultLogger()
}
