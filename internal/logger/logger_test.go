package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Levels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"verbose": zapcore.InfoLevel,
	}
	for name, want := range cases {
		l, err := NewLogger(name, "json", "qms-data")
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(want), name)
		if want > zapcore.DebugLevel {
			assert.False(t, l.Core().Enabled(want-1), name)
		}
	}
}

func TestNewLogger_Console(t *testing.T) {
	l, err := NewLogger("debug", "console", "")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}
