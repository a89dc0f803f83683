// Package logger owns the process-wide structured logger. All packages log
// through Get() so output shape and level are controlled in one place.
package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	sugar *zap.SugaredLogger
	once  sync.Once
)

// Init builds the global logger for the given environment. Production gets
// JSON output at info level; everything else gets console output at debug.
// LOG_LEVEL overrides the default level either way.
func Init(env string) {
	once.Do(func() {
		var cfg zap.Config
		if env == "production" {
			cfg = zap.NewProductionConfig()
		} else {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}

		if raw := os.Getenv("LOG_LEVEL"); raw != "" {
			if lvl, err := zapcore.ParseLevel(raw); err == nil {
				cfg.Level = zap.NewAtomicLevelAt(lvl)
			}
		}

		base, err := cfg.Build()
		if err != nil {
			base = zap.NewNop()
		}
		sugar = base.Sugar()
	})
}

// Get returns the global sugared logger, initializing a development logger
// if Init was never called (tests, tooling).
func Get() *zap.SugaredLogger {
	if sugar == nil {
		Init("development")
	}
	return sugar
}

// Sync flushes buffered entries. Call on shutdown.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
