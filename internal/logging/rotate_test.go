package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyRotatingFileWritesToday(t *testing.T) {
	dir := t.TempDir()
	w, err := NewDailyRotatingFile(dir, "workflow.log")
	require.NoError(t, err)
	defer w.Close()

	n, err := w.Write([]byte("line one\n"))
	require.NoError(t, err)
	assert.Equal(t, len("line one\n"), n)

	data, err := os.ReadFile(filepath.Join(dir, "workflow.log"))
	require.NoError(t, err)
	assert.Equal(t, "line one\n", string(data))
}

func TestDailyRotatingFileRotatesOnDayChange(t *testing.T) {
	dir := t.TempDir()
	w, err := NewDailyRotatingFile(dir, "workflow.log")
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("before rotation\n"))
	require.NoError(t, err)

	// Force the next Write to observe a changed day.
	w.day = "2000-01-01"
	_, err = w.Write([]byte("after rotation\n"))
	require.NoError(t, err)

	backup := filepath.Join(dir, "workflow.log.2000-01-01")
	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "before rotation\n", string(data))

	current, err := os.ReadFile(filepath.Join(dir, "workflow.log"))
	require.NoError(t, err)
	assert.Equal(t, "after rotation\n", string(current))
}

func TestDailyRotatingFileCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := NewDailyRotatingFile(dir, "workflow.log")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
