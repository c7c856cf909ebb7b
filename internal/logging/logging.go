package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide sugared logger. Init must run before anything
// else logs; DefaultLogger covers code paths reached before that.
var (
	Logger        = zap.NewNop().Sugar()
	DefaultLogger = zap.NewNop().Sugar()
)

func Init(environment, level string) {
	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	if parsed, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}

	base, err := cfg.Build(zap.AddCallerSkip(0))
	if err != nil {
		panic("building zap logger: " + err.Error())
	}
	Logger = base.Sugar()
	DefaultLogger = Logger
}

func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}
