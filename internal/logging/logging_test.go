package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_AppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	for i := 0; i < 2; i++ {
		logger, err := New("debug", path)
		require.NoError(t, err)
		logger.Debug("generating curve")
		_ = logger.Sync()
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	require.Equal(t, 2, strings.Count(text, "logger initialized"))
	require.Equal(t, 2, strings.Count(text, "generating curve"))
}

func TestNew_Level(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")
	logger, err := New("warn", path)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "hidden")
	require.Contains(t, string(data), "shown")
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New("loud", "")
	require.Error(t, err)
}
