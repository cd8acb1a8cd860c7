// Package provider implements the per-domain index providers (image, PDF):
// each combines a chunker, an embedder, and one or more chunk stores behind
// the four-operation Provider contract, enforcing per-file sequencing and
// idempotence.
package provider

import (
	"context"
	"time"

	"github.com/Aman-CERP/fetchgo/internal/schema"
)

// ChunkQueryResult pairs a stored chunk with its normalized relevance
// score in [0,100]. Construction panics on a negative score.
type ChunkQueryResult struct {
	Chunkfile schema.Chunk
	Score     float32
}

// NewChunkQueryResult validates score is non-negative before constructing
// the result, matching the source's "construction panics on negative
// scores" contract.
func NewChunkQueryResult(chunk schema.Chunk, score float32) ChunkQueryResult {
	if score < 0 {
		panic("provider: chunk query result score must be non-negative")
	}
	return ChunkQueryResult{Chunkfile: chunk, Score: score}
}

// Provider is the per-domain index provider contract: chunk, embed, store,
// and query a single file extension family.
type Provider interface {
	// Name identifies the provider for error attribution and the
	// FileIndexer's provider-keyed error map.
	Name() string

	// ProvidesIndexingForExtension reports whether this provider handles
	// files with the given extension (including the leading dot).
	ProvidesIndexingForExtension(ext string) bool

	// Index chunks, embeds, and stores path. modified overrides the
	// filesystem's modified time when non-nil.
	Index(ctx context.Context, path string, modified *time.Time) error

	// Clear removes path's chunk artifacts and store rows. When modified
	// is non-nil, the store delete only applies to rows stamped with
	// that modified date or older, so a late clear never erases a newer
	// index.
	Clear(ctx context.Context, path string, modified *time.Time) error

	// QueryN embeds text and returns up to limit matching chunks, offset
	// into the provider's ranked result stream.
	QueryN(ctx context.Context, text string, limit, offset int) ([]ChunkQueryResult, error)
}
