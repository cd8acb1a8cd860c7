package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fetchgo/internal/chunkstore"
	"github.com/Aman-CERP/fetchgo/internal/errs"
	"github.com/Aman-CERP/fetchgo/internal/schema"
)

func TestNormalizeScoreDropsAtOrBelowMinScore(t *testing.T) {
	_, ok := normalizeScore(0.1, 0.1, 1.0)
	assert.False(t, ok, "raw score equal to minScore must not survive")

	_, ok = normalizeScore(0.05, 0.1, 1.0)
	assert.False(t, ok)
}

func TestNormalizeScoreScalesIntoZeroHundred(t *testing.T) {
	score, ok := normalizeScore(1.0, 0.0, 1.0)
	require.True(t, ok)
	assert.InDelta(t, 100.0, score, 1e-6)

	score, ok = normalizeScore(0.5, 0.0, 1.0)
	require.True(t, ok)
	assert.InDelta(t, 50.0, score, 1e-6)
}

func TestNormalizeScoreClampsOutOfRange(t *testing.T) {
	score, ok := normalizeScore(2.0, 0.0, 1.0)
	require.True(t, ok)
	assert.InDelta(t, 100.0, score, 1e-6)
}

func TestNormalizeHitsFiltersBelowCutoff(t *testing.T) {
	hits := []chunkstore.Result[schema.Chunk]{
		{Row: schema.Chunk{OriginalFile: "/keep.png"}, Score: 0.5},
		{Row: schema.Chunk{OriginalFile: "/drop.png"}, Score: 0.01},
	}
	out := normalizeHits(hits, 0.1)
	require.Len(t, out, 1)
	assert.Equal(t, "/keep.png", out[0].Chunkfile.OriginalFile)
}

// fakeChunkTable is a minimal ChunkTable double for exercising
// checkSequencing/clearTable without a real store.
type fakeChunkTable struct {
	rows        []schema.Chunk
	clearCalls  int
	clearFilter []schema.Filter
}

func (f *fakeChunkTable) Put(ctx context.Context, rows []schema.Chunk) error {
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeChunkTable) QueryFilterN(ctx context.Context, filters []schema.Filter, limit, offset int) ([]schema.Chunk, error) {
	return f.rows, nil
}

func (f *fakeChunkTable) ClearFilter(ctx context.Context, filters []schema.Filter) error {
	f.clearCalls++
	f.clearFilter = filters
	return nil
}

func (f *fakeChunkTable) QueryFullN(ctx context.Context, queryText string, vec []float32, filters []schema.Filter, limit, offset int) ([]chunkstore.Result[schema.Chunk], error) {
	return nil, nil
}

var _ ChunkTable = (*fakeChunkTable)(nil)

func TestCheckSequencingNoExistingRowIsNoOp(t *testing.T) {
	table := &fakeChunkTable{}
	err := checkSequencing(context.Background(), table, "/a.png", time.Now())
	require.NoError(t, err)
	assert.Zero(t, table.clearCalls)
}

func TestCheckSequencingStaleWriteIsSequencingError(t *testing.T) {
	now := time.Now()
	table := &fakeChunkTable{rows: []schema.Chunk{{OriginalFile: "/a.png", OriginalFileModifiedDate: now}}}
	err := checkSequencing(context.Background(), table, "/a.png", now.Add(-time.Hour))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindSequencing))
	assert.Zero(t, table.clearCalls)
}

func TestCheckSequencingNewerWriteClearsPriorRows(t *testing.T) {
	now := time.Now()
	table := &fakeChunkTable{rows: []schema.Chunk{{OriginalFile: "/a.png", OriginalFileModifiedDate: now}}}
	err := checkSequencing(context.Background(), table, "/a.png", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, table.clearCalls)
}

func TestClearTableGatesByModifiedWhenGiven(t *testing.T) {
	table := &fakeChunkTable{}
	modified := time.Now()
	err := clearTable(context.Background(), table, "/a.png", &modified)
	require.NoError(t, err)
	require.Len(t, table.clearFilter, 2)
}

func TestClearTableWithoutModifiedClearsAllRowsForPath(t *testing.T) {
	table := &fakeChunkTable{}
	err := clearTable(context.Background(), table, "/a.png", nil)
	require.NoError(t, err)
	require.Len(t, table.clearFilter, 1)
}
