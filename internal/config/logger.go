package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a configured Zap logger from Viper settings.
// Reads "logging.level" (debug, info, warn, error; default "info")
// and "logging.format" (json, console; default "json").
func NewLogger(v *viper.Viper) (*zap.Logger, error) {
	level := v.GetString("logging.level")
	format := v.GetString("logging.format")

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json", "":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q: must be \"json\" or \"console\"", format)
	}

	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	return cfg.Build()
}

// PluginLogFile is the name of the plain-text log kept next to config.json.
const PluginLogFile = "plugin.log"

// WithPluginLog tees logger onto an append-only plain-text file at path.
// Lines look like "[2006-01-02 15:04:05] [WARNING] message"; only INFO and
// above are written. The returned close func flushes and closes the file.
func WithPluginLog(logger *zap.Logger, path string) (*zap.Logger, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // G302: log is meant to be readable by the admin
	if err != nil {
		return nil, nil, fmt.Errorf("opening plugin log: %w", err)
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(pluginLogEncoderConfig()),
		zapcore.Lock(f),
		zapcore.InfoLevel,
	)
	teed := logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, core)
	}))

	closeFn := func() error {
		_ = f.Sync()
		return f.Close()
	}
	return teed, closeFn, nil
}

func pluginLogEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		NameKey:          zapcore.OmitKey,
		CallerKey:        zapcore.OmitKey,
		StacktraceKey:    zapcore.OmitKey,
		LineEnding:       zapcore.DefaultLineEnding,
		ConsoleSeparator: " ",
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + t.Format("2006-01-02 15:04:05") + "]")
		},
		EncodeLevel: func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + PluginLogLevel(l) + "]")
		},
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

// PluginLogLevel maps a zap level onto the INFO/WARNING/ERROR vocabulary of
// the plain-text log.
func PluginLogLevel(l zapcore.Level) string {
	switch {
	case l >= zapcore.ErrorLevel:
		return "ERROR"
	case l == zapcore.WarnLevel:
		return "WARNING"
	case l == zapcore.DebugLevel:
		return "DEBUG"
	default:
		return "INFO"
	}
}
