package chunker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubdirForIsDeterministic(t *testing.T) {
	a := SubdirFor("/chunks", "/a/b.png")
	b := SubdirFor("/chunks", "/a/b.png")
	assert.Equal(t, a, b)
}

func TestSubdirForDiffersByPath(t *testing.T) {
	a := SubdirFor("/chunks", "/a/b.png")
	b := SubdirFor("/chunks", "/a/c.png")
	assert.NotEqual(t, a, b)
}

func TestEnsureSubdirCreatesDirectory(t *testing.T) {
	chunkDir := t.TempDir()
	dir, err := EnsureSubdir(chunkDir, "/a/b.png")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.True(t, strings.HasPrefix(dir, chunkDir) || filepath.Dir(dir) == chunkDir)
}

func TestRemoveSubdirDeletesDirectory(t *testing.T) {
	chunkDir := t.TempDir()
	dir, err := EnsureSubdir(chunkDir, "/a/b.png")
	require.NoError(t, err)

	require.NoError(t, RemoveSubdir(chunkDir, "/a/b.png"))
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveSubdirOnMissingDirectoryIsNotAnError(t *testing.T) {
	chunkDir := t.TempDir()
	require.NoError(t, RemoveSubdir(chunkDir, "/never/existed.png"))
}
