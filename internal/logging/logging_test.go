package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fetch.log")

	cfg := DefaultConfig()
	cfg.FilePath = path
	cfg.WriteToStderr = false

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	defer cleanup()

	logger.Info("indexing started", "path", "/tmp/doc.pdf")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"indexing started"`)
	require.Contains(t, string(data), `"path":"/tmp/doc.pdf"`)
}

func TestDebugConfigLowersLevel(t *testing.T) {
	cfg := DebugConfig()
	require.Equal(t, "debug", cfg.Level)
	require.Equal(t, slog.LevelDebug, parseLevel(cfg.Level))
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		require.Equal(t, want, parseLevel(in), in)
	}
}

func TestRotatingWriterRotatesOnSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rot.log")

	w, err := NewRotatingWriter(path, 0, 2)
	require.NoError(t, err)
	w.maxSize = 16
	defer w.Close()

	_, err = w.Write([]byte("0123456789abcdef"))
	require.NoError(t, err)
	_, err = w.Write([]byte("more-bytes-trigger-rotate"))
	require.NoError(t, err)

	_, err = os.Stat(path + ".1")
	require.NoError(t, err)
}
