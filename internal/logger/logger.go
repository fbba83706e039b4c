package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewProductionLogger builds the JSON logger used by the server and worker.
// fields, usually the service name, are attached to every entry. Entries at
// error level and above carry a stack trace.
func NewProductionLogger(debugMode bool, fields ...zap.Field) (*zap.Logger, error) {
	encoding := zap.NewProductionEncoderConfig()
	encoding.TimeKey = "ts"
	encoding.FunctionKey = zapcore.OmitKey
	encoding.EncodeTime = zapcore.ISO8601TimeEncoder
	encoding.EncodeDuration = zapcore.SecondsDurationEncoder

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(levelFor(debugMode))
	cfg.Encoding = "json"
	cfg.EncoderConfig = encoding
	cfg.DisableStacktrace = false

	return cfg.Build(zap.Fields(fields...))
}

// NewDevelopmentLogger builds a console logger on stderr so plannerctl can
// keep stdout for tables and JSON
func NewDevelopmentLogger(debugMode bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(levelFor(debugMode))
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = !debugMode

	return cfg.Build()
}

// Sync flushes buffered entries; a nil logger is a no-op
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	return logger.Sync()
}

func levelFor(debugMode bool) zapcore.Level {
	if debugMode {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}
