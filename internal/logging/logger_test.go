package logging

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerCreatesLogFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	logger, err := NewLogger("checkpoint")
	require.NoError(t, err)
	defer logger.Close()

	logger.Info("checkpoint завершён за %d мс", 12)

	entries, err := os.ReadDir("logs")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoggerManagerReturnsSameInstancePerComponent(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	lm := &LoggerManager{loggers: make(map[string]*Logger)}

	first, err := lm.GetLogger("vault")
	require.NoError(t, err)
	second, err := lm.GetLogger("vault")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.NoError(t, lm.CloseAll())
}
