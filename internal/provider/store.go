package provider

import (
	"context"

	"github.com/Aman-CERP/fetchgo/internal/chunkstore"
	"github.com/Aman-CERP/fetchgo/internal/schema"
)

// ChunkTable is the subset of *chunkstore.Store[schema.Chunk] a provider
// depends on, narrowed to an interface so providers can be tested against
// an in-memory fake without a SQLite/HNSW backend.
type ChunkTable interface {
	Put(ctx context.Context, rows []schema.Chunk) error
	QueryFilterN(ctx context.Context, filters []schema.Filter, limit, offset int) ([]schema.Chunk, error)
	ClearFilter(ctx context.Context, filters []schema.Filter) error
	QueryFullN(ctx context.Context, queryText string, vec []float32, filters []schema.Filter, limit, offset int) ([]chunkstore.Result[schema.Chunk], error)
}

var _ ChunkTable = (*chunkstore.Store[schema.Chunk])(nil)
