package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(level zapcore.Level) (*ZapLogger, *observer.ObservedLogs) {
	atom := zap.NewAtomicLevelAt(level)
	core, logs := observer.New(atom)
	return NewFromZap(zap.New(core), atom), logs
}

func TestZapLoggerFields(t *testing.T) {
	log, logs := newObserved(zapcore.DebugLevel)

	log.Info("phase completed", map[string]interface{}{
		"phase":    "detect",
		"attempts": 1,
		"error":    errors.New("boom"),
	})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "phase completed", entry.Message)
	ctx := entry.ContextMap()
	assert.Equal(t, "detect", ctx["phase"])
	assert.Equal(t, int64(1), ctx["attempts"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestLoggerWith(t *testing.T) {
	log, logs := newObserved(zapcore.DebugLevel)

	child := log.With(map[string]interface{}{"component": "registry"})
	child.Warn("duplicate", nil)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "registry", logs.All()[0].ContextMap()["component"])
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		emitted int
	}{
		{"Debug", "debug", 4},
		{"Info", "info", 3},
		{"Warn", "warning", 2},
		{"Error", "ERROR", 1},
		{"Unknown falls back to info", "verbose", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, logs := newObserved(zapcore.DebugLevel)
			log.SetLevel(tt.level)

			log.Debug("d", nil)
			log.Info("i", nil)
			log.Warn("w", nil)
			log.Error("e", nil)

			assert.Equal(t, tt.emitted, logs.Len())
		})
	}
}

func TestSetLevelPropagatesToChildren(t *testing.T) {
	log, logs := newObserved(zapcore.DebugLevel)
	child := log.With(map[string]interface{}{"k": "v"})

	log.SetLevel("error")
	child.Info("suppressed", nil)

	assert.Equal(t, 0, logs.Len())
}

func TestNewZapLogger(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatHuman} {
		l, err := NewZapLogger(Options{Level: "debug", Format: format, OutputPaths: []string{"stderr"}})
		require.NoError(t, err)
		l.Debug("hello", map[string]interface{}{"format": string(format)})
	}
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, NoOpLogger{}, OrNoOp(nil))

	l, _ := newObserved(zapcore.InfoLevel)
	assert.Same(t, l, OrNoOp(l))

	n := NoOpLogger{}
	assert.NotPanics(t, func() {
		n.With(map[string]interface{}{"a": 1}).Error("ignored", nil)
	})
}

func TestGetLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, "INFO", GetLogLevel())
	t.Setenv("LOG_LEVEL", "debug")
	assert.Equal(t, "debug", GetLogLevel())
}

func BenchmarkLogger(b *testing.B) {
	log, _ := newObserved(zapcore.InfoLevel)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		log.Info("benchmark message", map[string]interface{}{
			"iteration": i,
			"benchmark": true,
		})
	}
}
