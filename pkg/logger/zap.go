package logger

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements Logger on top of a zap SugaredLogger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

// NewZapLogger builds a logger. JSON output uses zap's production config,
// anything else the development console encoder.
func NewZapLogger(opts Options) (*ZapLogger, error) {
	var cfg zap.Config
	if opts.Format == FormatJSON {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	cfg.OutputPaths = []string{"stdout"}
	if len(opts.OutputPaths) > 0 {
		cfg.OutputPaths = opts.OutputPaths
	}

	level := zap.NewAtomicLevelAt(parseLevel(opts.Level))
	cfg.Level = level

	base, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	sugar := base.Sugar()
	if opts.Component != "" {
		sugar = sugar.With("component", opts.Component)
	}
	return &ZapLogger{sugar: sugar, level: level}, nil
}

// NewFromZap wraps an existing zap logger, mostly for tests using zaptest/observer.
func NewFromZap(z *zap.Logger, level zap.AtomicLevel) *ZapLogger {
	return &ZapLogger{sugar: z.Sugar(), level: level}
}

// NewDefaultLogger returns a human-readable logger at the level named by LOG_LEVEL.
// It falls back to NoOpLogger if zap cannot be initialised.
func NewDefaultLogger() Logger {
	l, err := NewZapLogger(Options{Level: GetLogLevel(), Format: Format(os.Getenv("LOG_FORMAT"))})
	if err != nil {
		return NoOpLogger{}
	}
	return l
}

func (l *ZapLogger) Debug(msg string, fields map[string]interface{}) {
	l.sugar.Debugw(msg, flattenFields(fields)...)
}

func (l *ZapLogger) Info(msg string, fields map[string]interface{}) {
	l.sugar.Infow(msg, flattenFields(fields)...)
}

func (l *ZapLogger) Warn(msg string, fields map[string]interface{}) {
	l.sugar.Warnw(msg, flattenFields(fields)...)
}

func (l *ZapLogger) Error(msg string, fields map[string]interface{}) {
	l.sugar.Errorw(msg, flattenFields(fields)...)
}

// SetLevel changes the level for this logger and every logger derived from it.
func (l *ZapLogger) SetLevel(level string) {
	l.level.SetLevel(parseLevel(level))
}

func (l *ZapLogger) With(fields map[string]interface{}) Logger {
	return &ZapLogger{sugar: l.sugar.With(flattenFields(fields)...), level: l.level}
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}

// flattenFields turns a field map into zap's alternating key/value form.
// Keys are sorted so output is stable between runs.
func flattenFields(fields map[string]interface{}) []interface{} {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	flat := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		v := fields[k]
		if err, ok := v.(error); ok && err != nil {
			v = err.Error()
		}
		flat = append(flat, k, v)
	}
	return flat
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// GetLogLevel gets the current log level from environment
func GetLogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "INFO"
	}
	return level
}
