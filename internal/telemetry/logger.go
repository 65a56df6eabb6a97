package telemetry

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig holds configuration for the logger
type LogConfig struct {
	Environment string
	Level       string
	Service     string
	// Encoding is "json" or "console". Empty picks console in development.
	Encoding string
}

// NewLogger builds a zap logger writing to stderr, leaving stdout for command
// output.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Service == "" {
		cfg.Service = "clothsim"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "json"
		if cfg.Environment == "development" {
			cfg.Encoding = "console"
		}
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(cfg.Level)),
		Development:      cfg.Environment == "development",
		Encoding:         cfg.Encoding,
		EncoderConfig:    encoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(
		zap.String("service", cfg.Service),
		zap.String("environment", cfg.Environment),
	), nil
}

// NewLoggerTo writes JSON entries at or above level to w.
func NewLoggerTo(w io.Writer, level string) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		parseLevel(level),
	)
	return zap.New(core)
}

func NopLogger() *zap.Logger { return zap.NewNop() }

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
