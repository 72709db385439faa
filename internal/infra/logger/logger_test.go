package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var out, console bytes.Buffer
	l := NewWriter(&out, &console, LevelInfo)

	l.Debug("hidden %d", 1)
	l.Info("shown %d", 2)
	l.Error("boom")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "[INFO] shown 2")
	assert.Contains(t, out.String(), "[ERROR] boom")
	assert.Contains(t, console.String(), "shown 2")
}

func TestDebugNeverReachesConsole(t *testing.T) {
	var out, console bytes.Buffer
	l := NewWriter(&out, &console, LevelDebug)

	l.Debug("noisy")

	assert.Contains(t, out.String(), "[DEBUG] noisy")
	assert.Empty(t, console.String())
}

func TestNamedPrefixesComponent(t *testing.T) {
	var out bytes.Buffer
	l := NewWriter(&out, nil, LevelInfo)

	l.Named("engine").Named("worker-1").Info("fetching")

	assert.Contains(t, out.String(), "[INFO] [engine/worker-1] fetching")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"WARN":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"info":    LevelInfo,
		"":        LevelInfo,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestWriteTrimsNewlines(t *testing.T) {
	var out bytes.Buffer
	l := NewWriter(&out, nil, LevelInfo)

	n, err := l.Write([]byte("GET /api/jobs | 200\n"))
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
}

func TestNewAppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bossfetch.log")

	l, err := New(path, LevelInfo, false)
	require.NoError(t, err)
	l.Info("first")
	require.NoError(t, l.Close())

	l, err = New(path, LevelInfo, false)
	require.NoError(t, err)
	l.Info("second")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first")
	assert.Contains(t, string(data), "second")
}
