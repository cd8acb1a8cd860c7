// Package chunker implements the pure file → []Chunk transforms: decode,
// resize, materialize chunk artifacts on disk, and emit schema.Chunk
// records. No chunker touches a store or an embedding session.
package chunker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/fetchgo/internal/schema"
)

// Chunker converts one file into its constituent chunks, materializing
// chunk artifacts under <chunkDir>/<hash(path)>/.
type Chunker interface {
	SupportedExtensions() []string
	Chunk(ctx context.Context, path string, meta FileMeta, chunkDir string) ([]schema.Chunk, error)
}

// FileMeta carries the stat/metadata fields a chunker needs to populate
// every emitted Chunk's original_file_* columns.
type FileMeta struct {
	CreationDate time.Time
	ModifiedDate time.Time
	Size         uint64
}

// SubdirFor returns the chunk artifact subdirectory for path:
// <chunkDir>/<hash(path)>/.
func SubdirFor(chunkDir, path string) string {
	sum := sha256.Sum256([]byte(path))
	return filepath.Join(chunkDir, hex.EncodeToString(sum[:])[:32])
}

// EnsureSubdir creates the per-file chunk subdirectory.
func EnsureSubdir(chunkDir, path string) (string, error) {
	dir := SubdirFor(chunkDir, path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create chunk subdir: %w", err)
	}
	return dir, nil
}

// RemoveSubdir deletes the per-file chunk subdirectory. A missing subdir
// is not an error.
func RemoveSubdir(chunkDir, path string) error {
	dir := SubdirFor(chunkDir, path)
	err := os.RemoveAll(dir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove chunk subdir: %w", err)
	}
	return nil
}
