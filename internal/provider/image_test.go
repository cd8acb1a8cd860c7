package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fetchgo/internal/chunker"
	"github.com/Aman-CERP/fetchgo/internal/chunkstore"
	"github.com/Aman-CERP/fetchgo/internal/schema"
)

// fakeChunkerAdapter is a minimal chunker.Chunker double returning canned
// chunks, letting ImageProvider be exercised without real image decoding.
type fakeChunkerAdapter struct {
	exts   []string
	chunks []schema.Chunk
}

func (f *fakeChunkerAdapter) SupportedExtensions() []string { return f.exts }

func (f *fakeChunkerAdapter) Chunk(ctx context.Context, path string, meta chunker.FileMeta, chunkDir string) ([]schema.Chunk, error) {
	return f.chunks, nil
}

var _ chunker.Chunker = (*fakeChunkerAdapter)(nil)

type fakeEmbedder struct {
	vec []float32
}

func (f *fakeEmbedder) EmbedImageFile(ctx context.Context, path string) ([]float32, error) {
	return f.vec, nil
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string, isQuery bool) ([]float32, error) {
	return f.vec, nil
}

func (f *fakeEmbedder) EmbedSiglipText(ctx context.Context, text string) ([]float32, error) {
	return f.vec, nil
}

var _ Embedder = (*fakeEmbedder)(nil)

func TestImageProviderMinScoreDefaultsWhenZero(t *testing.T) {
	p := &ImageProvider{}
	assert.Equal(t, defaultImageMinScore, p.minScore())
}

func TestImageProviderMinScoreOverride(t *testing.T) {
	p := &ImageProvider{MinScore: 0.5}
	assert.Equal(t, 0.5, p.minScore())
}

func TestImageProviderProvidesIndexingForExtension(t *testing.T) {
	p := &ImageProvider{Chunker: &fakeChunkerAdapter{exts: []string{".webp", ".png"}}}
	assert.True(t, p.ProvidesIndexingForExtension(".png"))
	assert.True(t, p.ProvidesIndexingForExtension(".WEBP"))
	assert.False(t, p.ProvidesIndexingForExtension(".pdf"))
}

func TestImageProviderQueryNStopsAtCutoff(t *testing.T) {
	hits := []chunkstore.Result[schema.Chunk]{
		{Row: schema.Chunk{OriginalFile: "/a.png"}, Score: 0.9},
		{Row: schema.Chunk{OriginalFile: "/b.png"}, Score: 0.01},
	}
	p := &ImageProvider{
		Store:    &fakeQueryableTable{fakeChunkTable: &fakeChunkTable{}, fullHits: hits},
		Embedder: &fakeEmbedder{vec: []float32{1, 2, 3}},
		MinScore: 0.1,
	}
	out, err := p.QueryN(context.Background(), "cats", 10, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "/a.png", out[0].Chunkfile.OriginalFile)
}

func TestImageProviderClearRemovesRows(t *testing.T) {
	dir := t.TempDir()
	table := &fakeChunkTable{}
	p := &ImageProvider{Store: table, ChunkDir: dir}

	path := filepath.Join(dir, "source.png")
	err := p.Clear(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, table.clearCalls)
}

func TestImageProviderIndexDetectsStaleSequencing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	now := time.Now()
	table := &fakeChunkTable{rows: []schema.Chunk{{OriginalFile: path, OriginalFileModifiedDate: now}}}
	p := &ImageProvider{
		Chunker:  &fakeChunkerAdapter{exts: []string{".png"}, chunks: []schema.Chunk{{OriginalFile: path}}},
		Embedder: &fakeEmbedder{vec: []float32{1}},
		Store:    table,
		ChunkDir: dir,
	}

	stale := now.Add(-time.Hour)
	err := p.Index(context.Background(), path, &stale)
	require.Error(t, err)
}

// fakeQueryableTable extends fakeChunkTable with a canned QueryFullN result.
type fakeQueryableTable struct {
	*fakeChunkTable
	fullHits []chunkstore.Result[schema.Chunk]
}

func (f *fakeQueryableTable) QueryFullN(ctx context.Context, queryText string, vec []float32, filters []schema.Filter, limit, offset int) ([]chunkstore.Result[schema.Chunk], error) {
	return f.fullHits, nil
}
