package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]Level{
		"debug":   LevelDebug,
		" ERROR ": LevelError,
		"info":    LevelInfo,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestEvenKVs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []any{"a", 1}, evenKVs([]any{"a", 1, "dangling"}))
	assert.Equal(t, []any{"b", 2}, evenKVs([]any{3, "x", "b", 2}))
	assert.Empty(t, evenKVs(nil))
}

func TestToZap(t *testing.T) {
	t.Parallel()

	assert.Equal(t, zapcore.DebugLevel, toZap(LevelDebug))
	assert.Equal(t, zapcore.ErrorLevel, toZap(LevelError))
	assert.Equal(t, zapcore.InfoLevel, toZap(Level("nope")))
}

func TestLoggingDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Info("hello", "k", "v", "odd")
		Debug("hidden")
		Error("boom", errors.New("x"), 7, "ignored")
		Sync()
	})
}
