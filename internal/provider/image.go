package provider

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aman-CERP/fetchgo/internal/chunker"
	"github.com/Aman-CERP/fetchgo/internal/errs"
)

// defaultImageMinScore is the image provider's MIN_SCORE cutoff.
const defaultImageMinScore = 0.015

// ImageProvider chunks, embeds, and stores still-image files (and, when
// built with the psd tag, PSD documents) into the siglip2_chunkfile table.
type ImageProvider struct {
	Chunker  chunker.Chunker
	PSD      chunker.Chunker // optional; nil when the psd build tag is absent
	Embedder Embedder
	Store    ChunkTable
	ChunkDir string

	// MinScore overrides defaultImageMinScore when non-zero.
	MinScore float64
}

func (p *ImageProvider) minScore() float64 {
	if p.MinScore != 0 {
		return p.MinScore
	}
	return defaultImageMinScore
}

func (p *ImageProvider) Name() string { return "image" }

func (p *ImageProvider) ProvidesIndexingForExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range p.Chunker.SupportedExtensions() {
		if e == ext {
			return true
		}
	}
	if p.PSD != nil {
		for _, e := range p.PSD.SupportedExtensions() {
			if e == ext {
				return true
			}
		}
	}
	return false
}

func (p *ImageProvider) chunkerFor(path string) chunker.Chunker {
	if p.PSD != nil && strings.EqualFold(filepath.Ext(path), ".psd") {
		return p.PSD
	}
	return p.Chunker
}

func (p *ImageProvider) Index(ctx context.Context, path string, modified *time.Time) error {
	lastModified, err := resolveModified(path, modified)
	if err != nil {
		return err
	}

	if err := checkSequencing(ctx, p.Store, path, lastModified); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return errs.Wrap(errs.KindIO, "stat "+path, err)
	}
	meta := chunker.FileMeta{
		CreationDate: lastModified,
		ModifiedDate: lastModified,
		Size:         uint64(info.Size()),
	}

	chunks, err := p.chunkerFor(path).Chunk(ctx, path, meta, p.ChunkDir)
	if err != nil {
		return err
	}

	for i, ck := range chunks {
		vec, err := p.Embedder.EmbedImageFile(ctx, ck.Chunkfile)
		if err != nil {
			return err
		}
		chunks[i].Embedding = vec
	}

	if err := p.Store.Put(ctx, chunks); err != nil {
		return errs.StoreOp("put", err)
	}
	return nil
}

func (p *ImageProvider) Clear(ctx context.Context, path string, modified *time.Time) error {
	if err := chunker.RemoveSubdir(p.ChunkDir, path); err != nil {
		return err
	}
	return clearTable(ctx, p.Store, path, modified)
}

func (p *ImageProvider) QueryN(ctx context.Context, text string, limit, offset int) ([]ChunkQueryResult, error) {
	vec, err := p.Embedder.EmbedSiglipText(ctx, text)
	if err != nil {
		return nil, err
	}

	hits, err := p.Store.QueryFullN(ctx, text, vec, nil, limit, offset)
	if err != nil {
		return nil, errs.StoreOp("query", err)
	}

	out := make([]ChunkQueryResult, 0, len(hits))
	for _, h := range hits {
		score, ok := normalizeScore(float64(h.Score), p.minScore(), 1.0)
		if !ok {
			// results are descending by relevance; the cutoff short-circuits
			break
		}
		out = append(out, NewChunkQueryResult(h.Row, score))
	}
	return out, nil
}
