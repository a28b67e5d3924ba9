package logutil

import (
	"context"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey struct{}

var defaultLogger atomic.Pointer[zap.Logger]

func init() {
	defaultLogger.Store(zap.NewNop())
}

// Init configures the process-wide logger. File rotation is handled by
// lumberjack; console output is added when console is true.
func Init(file string, level string, fileCount int, fileSizeMB int, keepDays int, console bool) {
	lvl := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(level); err == nil {
		lvl = parsed
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if file != "" {
		writer := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    fileSizeMB,
			MaxBackups: fileCount,
			MaxAge:     keepDays,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(writer), lvl))
	}
	if console || file == "" {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(os.Stderr), lvl))
	}
	defaultLogger.Store(zap.New(zapcore.NewTee(cores...)))
}

// GetLogger returns the logger attached to ctx, or the process logger.
func GetLogger(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && logger != nil {
			return logger
		}
	}
	return defaultLogger.Load()
}

// WithLogger attaches logger to ctx so request-scoped fields follow the call chain.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}
