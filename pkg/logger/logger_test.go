package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newBufferedLogger 创建输出到缓冲区的 logger
func newBufferedLogger(t *testing.T, level zapcore.Level) (*BaseLogger, *bytes.Buffer) {
	t.Helper()

	l, err := New(&Config{Level: DebugLevel, Format: JSONFormat})
	require.NoError(t, err)

	var buf bytes.Buffer
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zapcore.EncoderConfig{
			MessageKey:  "msg",
			LevelKey:    "level",
			NameKey:     "logger",
			EncodeLevel: zapcore.LowercaseLevelEncoder,
		}),
		zapcore.AddSync(&buf),
		level,
	)
	l.Logger = zap.New(core)
	return l, &buf
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "nil config uses default", config: nil},
		{name: "valid minimal config", config: &Config{Level: InfoLevel, Format: JSONFormat}},
		{name: "file enabled but no path", config: &Config{EnableFile: true}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	l, buf := newBufferedLogger(t, zapcore.DebugLevel)

	tests := []struct {
		name    string
		logFunc func(string, ...interface{})
		level   string
	}{
		{"debug", l.Debug, "debug"},
		{"info", l.Info, "info"},
		{"warn", l.Warn, "warn"},
		{"error", l.Error, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc(tt.name + " message")

			entry := decodeEntry(t, buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, tt.name+" message", entry["msg"])
		})
	}
}

func TestKeyValueFields(t *testing.T) {
	l, buf := newBufferedLogger(t, zapcore.InfoLevel)

	l.Info("volume checked", "index", 4, "outcome", "present")

	entry := decodeEntry(t, buf)
	assert.Equal(t, float64(4), entry["index"])
	assert.Equal(t, "present", entry["outcome"])
}

func TestZapFields(t *testing.T) {
	l, buf := newBufferedLogger(t, zapcore.InfoLevel)

	l.Info("pass finished", zap.String("run_id", "abc"), zap.Int("volumes", 6))

	entry := decodeEntry(t, buf)
	assert.Equal(t, "abc", entry["run_id"])
	assert.Equal(t, float64(6), entry["volumes"])
}

func TestOddKeyValuesAreDropped(t *testing.T) {
	l, buf := newBufferedLogger(t, zapcore.InfoLevel)

	l.Info("odd", "lonely")

	entry := decodeEntry(t, buf)
	assert.NotContains(t, entry, "lonely")
}

func TestWithFieldsAndNamed(t *testing.T) {
	l, buf := newBufferedLogger(t, zapcore.InfoLevel)

	derived := l.Named("analyzer").WithFields("run_id", "r1")
	derived.Info("scan")

	entry := decodeEntry(t, buf)
	assert.Equal(t, "analyzer", entry["logger"])
	assert.Equal(t, "r1", entry["run_id"])

	// 空字段返回自身
	assert.Same(t, l, l.WithFields())
}

func TestContextExtractor(t *testing.T) {
	l, err := New(&Config{Format: JSONFormat}, WithContextExtractor(RunIDExtractor))
	require.NoError(t, err)

	var buf bytes.Buffer
	l.Logger = zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(zapcore.EncoderConfig{MessageKey: "msg"}),
		zapcore.AddSync(&buf),
		zapcore.InfoLevel,
	))

	ctx := ContextWithRunID(context.Background(), "r42")
	l.InfoContext(ctx, "with context", "index", 1)

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "r42", entry["run_id"])
	assert.Equal(t, float64(1), entry["index"])

	buf.Reset()
	l.InfoContext(context.Background(), "without run")
	entry = decodeEntry(t, &buf)
	assert.NotContains(t, entry, "run_id")
}

func TestRunIDFromContext(t *testing.T) {
	_, ok := RunIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = RunIDFromContext(ContextWithRunID(context.Background(), ""))
	assert.False(t, ok)

	id, ok := RunIDFromContext(ContextWithRunID(context.Background(), "r7"))
	assert.True(t, ok)
	assert.Equal(t, "r7", id)

	assert.Nil(t, RunIDExtractor(context.Background()))
}

func TestNewInstallsHooks(t *testing.T) {
	var levels []zapcore.Level
	l, err := New(&Config{Level: DebugLevel, Format: JSONFormat},
		WithHooks(HookFunc(func(entry zapcore.Entry, fields []zapcore.Field) bool {
			levels = append(levels, entry.Level)
			return true
		})))
	require.NoError(t, err)

	l.Debug("one")
	l.Warn("two")
	assert.Equal(t, []zapcore.Level{zapcore.DebugLevel, zapcore.WarnLevel}, levels)
}

func TestHooksCanDropEntries(t *testing.T) {
	var seen int
	hook := HookFunc(func(entry zapcore.Entry, fields []zapcore.Field) bool {
		seen++
		return entry.Level >= zapcore.WarnLevel
	})

	var buf bytes.Buffer
	core := NewHookedCore(zapcore.NewCore(
		zapcore.NewJSONEncoder(zapcore.EncoderConfig{MessageKey: "msg"}),
		zapcore.AddSync(&buf),
		zapcore.DebugLevel,
	), hook)
	zl := zap.New(core)

	zl.Info("dropped")
	assert.Equal(t, 0, buf.Len())

	zl.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
	assert.Equal(t, 2, seen)
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NewNoop()

	l.Info("ignored", "k", "v")
	l.ErrorContext(context.Background(), "ignored")
	assert.Equal(t, l, l.Named("x"))
	assert.Equal(t, l, l.WithFields("k", "v"))
	assert.NoError(t, l.Sync())
}
