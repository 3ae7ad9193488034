package logging

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with component naming used across the ledger.
type Logger struct {
	*zap.Logger
}

// Options control how the process logger is built.
type Options struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is json or console.
	Format string `yaml:"format"`
	// Development switches to zap's development encoder with caller and stacktraces.
	Development bool `yaml:"development"`
	// OutputPaths defaults to stderr so stdout stays free for CLI output.
	OutputPaths []string `yaml:"output_paths"`
}

// DefaultOptions returns production defaults: info level, json, stderr.
func DefaultOptions() Options {
	return Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stderr"},
	}
}

// OptionsFromEnv overlays LOG_LEVEL, LOG_FORMAT and LOG_DEV on the defaults.
func OptionsFromEnv() Options {
	opts := DefaultOptions()
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		opts.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		opts.Format = format
	}
	if os.Getenv("LOG_DEV") == "true" {
		opts.Development = true
		if os.Getenv("LOG_FORMAT") == "" {
			opts.Format = "console"
		}
	}
	return opts
}

// New builds a Logger from opts.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	format := opts.Format
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "console" {
		return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	if opts.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	outputs := opts.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zl, err := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       opts.Development,
		DisableCaller:     !opts.Development,
		DisableStacktrace: !opts.Development,
		Encoding:          format,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
	}.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{zl}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap.NewNop()}
}

// ParseLevel converts a level name into a zapcore.Level.
// An empty string means info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("logging: unknown level %q", level)
	}
}

// With creates a child logger with additional fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{l.Logger.With(fields...)}
}

// Named creates a child logger with a name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{l.Logger.Named(name)}
}

// Component returns the global logger named after a package, e.g. "ledger" or "writer".
func Component(name string) *Logger {
	return Global().Named(name)
}

var global atomic.Pointer[Logger]

func init() {
	global.Store(NewNop())
}

// SetGlobal replaces the process logger. A nil logger resets it to a no-op.
func SetGlobal(logger *Logger) {
	if logger == nil {
		logger = NewNop()
	}
	global.Store(logger)
}

// Global returns the process logger.
func Global() *Logger {
	return global.Load()
}
