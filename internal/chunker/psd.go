//go:build psd

package chunker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oov/psd"

	"github.com/Aman-CERP/fetchgo/internal/errs"
	"github.com/Aman-CERP/fetchgo/internal/schema"
	"github.com/Aman-CERP/fetchgo/internal/workpool"
)

// PSDChunker flattens every layer of a PSD document to RGBA, resizes, and
// emits a single image chunk, the same shape as ImageChunker. Only built
// when the "psd" build tag is present, mirroring the PSD feature gate.
type PSDChunker struct {
	Pool *workpool.Pool
}

func (c *PSDChunker) SupportedExtensions() []string { return []string{".psd"} }

func (c *PSDChunker) Chunk(ctx context.Context, path string, meta FileMeta, chunkDir string) ([]schema.Chunk, error) {
	subdir, err := EnsureSubdir(chunkDir, path)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "create chunk subdir", err)
	}

	outPath := filepath.Join(subdir, "base-0.0.webp")
	err = c.Pool.Run(ctx, func(ctx context.Context) error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		doc, _, err := psd.Decode(f, nil)
		if err != nil {
			return fmt.Errorf("decode psd: %w", err)
		}
		flattened := doc.Picker
		resized := resizeLongestSide(flattened, maxImageSide)
		return writeWebP(resized, outPath)
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindChunking, fmt.Sprintf("decode/encode %s", path), err)
	}

	return []schema.Chunk{{
		OriginalFile:             path,
		ChunkChannel:             "base",
		ChunkSequenceID:          0.0,
		Chunkfile:                outPath,
		ChunkType:                schema.ChunkTypeImage,
		ChunkLength:              1.0,
		OriginalFileCreationDate: meta.CreationDate,
		OriginalFileModifiedDate: meta.ModifiedDate,
		OriginalFileSize:         meta.Size,
	}}, nil
}
