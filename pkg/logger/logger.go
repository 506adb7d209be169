package logger

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Log      *zap.Logger
	onceInit sync.Once
)

// Init builds the process-wide logger once. Later calls are no-ops.
func Init(level zapcore.Level, meta ...zap.Field) error {
	var buildErr error
	onceInit.Do(func() {
		instance, err := configure(level).Build(zap.AddCaller())
		if err != nil {
			buildErr = err
			return
		}
		Log = instance.With(meta...)
	})

	if buildErr != nil {
		return errors.Wrap(buildErr, "build logger")
	}
	if Log == nil {
		return errors.New("logger not initialized")
	}

	return nil
}

// L returns the process-wide logger, or a no-op logger when Init was never called.
func L() *zap.Logger {
	if Log == nil {
		return zap.NewNop()
	}
	return Log
}

func configure(level zapcore.Level) zap.Config {
	encoder := zap.NewProductionEncoderConfig()
	encoder.TimeKey = "timestamp"
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoder.EncodeCaller = zapcore.ShortCallerEncoder
	encoder.EncodeDuration = zapcore.SecondsDurationEncoder
	encoder.EncodeName = zapcore.FullNameEncoder
	encoder.CallerKey = "caller"
	return zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       false,
		DisableCaller:     false,
		DisableStacktrace: false,
		Encoding:          "console",
		EncoderConfig:     encoder,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}
