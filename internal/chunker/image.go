package chunker

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/webp" // WebP decode support

	"github.com/Aman-CERP/fetchgo/internal/errs"
	"github.com/Aman-CERP/fetchgo/internal/schema"
	"github.com/Aman-CERP/fetchgo/internal/workpool"
)

// maxImageSide is the chunker's resize bound: longest side ≤ 512.
const maxImageSide = 512

// ImageChunker emits one image chunk per supported image file: decode,
// resize so the longest side is ≤512 (triangular filter), save as WebP,
// emit a single Chunk.
type ImageChunker struct {
	Pool *workpool.Pool
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".bmp": true, ".gif": true,
}

func (c *ImageChunker) SupportedExtensions() []string {
	exts := make([]string, 0, len(imageExtensions))
	for e := range imageExtensions {
		exts = append(exts, e)
	}
	return exts
}

func (c *ImageChunker) Chunk(ctx context.Context, path string, meta FileMeta, chunkDir string) ([]schema.Chunk, error) {
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

		img, _, err := image.Decode(f)
		if err != nil {
			return err
		}
		resized := resizeLongestSide(img, maxImageSide)
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
