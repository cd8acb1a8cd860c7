package filequery

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fetchgo/internal/cursor"
	"github.com/Aman-CERP/fetchgo/internal/provider"
	"github.com/Aman-CERP/fetchgo/internal/schema"
)

type fakeQueryProvider struct {
	name    string
	hits    []provider.ChunkQueryResult
	err     error
	calls   int
	queries []string
}

func (f *fakeQueryProvider) Name() string                                  { return f.name }
func (f *fakeQueryProvider) ProvidesIndexingForExtension(ext string) bool  { return true }
func (f *fakeQueryProvider) Index(context.Context, string, *time.Time) error { return nil }
func (f *fakeQueryProvider) Clear(context.Context, string, *time.Time) error { return nil }

func (f *fakeQueryProvider) QueryN(ctx context.Context, text string, limit, offset int) ([]provider.ChunkQueryResult, error) {
	f.calls++
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func chunkHit(path string, score float32) provider.ChunkQueryResult {
	return provider.NewChunkQueryResult(schema.Chunk{OriginalFile: path}, score)
}

func newStore(t *testing.T) *cursor.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cursor.db")
	store, err := cursor.Open(path, 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestQueryNCreatesFreshCursorWhenNoneGiven(t *testing.T) {
	p := &fakeQueryProvider{name: "img", hits: []provider.ChunkQueryResult{chunkHit("/a.png", 10)}}
	fq := New([]provider.Provider{p}, newStore(t), 0, nil)

	resp, err := fq.QueryN(context.Background(), "cats", 10, nil)
	require.NoError(t, err)
	require.NotNil(t, resp.CursorID)
	assert.Equal(t, 1, resp.ResultsLen)
	require.Len(t, resp.ChangedResults, 1)
	assert.Equal(t, "/a.png", resp.ChangedResults[0].Path)
	assert.Nil(t, resp.ChangedResults[0].OldRank)
}

func TestQueryNContinuingCursorFoldsIntoSameFile(t *testing.T) {
	p := &fakeQueryProvider{name: "img", hits: []provider.ChunkQueryResult{chunkHit("/a.png", 10)}}
	store := newStore(t)
	fq := New([]provider.Provider{p}, store, 0, nil)

	first, err := fq.QueryN(context.Background(), "cats", 10, nil)
	require.NoError(t, err)
	require.NotNil(t, first.CursorID)

	// A second batch of chunks for the same file raises its chunk count,
	// so its chunk_multiplier_score changes even though its rank (the
	// only file tracked) stays #1.
	second, err := fq.QueryN(context.Background(), "cats", 10, first.CursorID)
	require.NoError(t, err)
	assert.Equal(t, 1, second.ResultsLen)
	require.Len(t, second.ChangedResults, 1)
	assert.Equal(t, "/a.png", second.ChangedResults[0].Path)
	require.NotNil(t, second.ChangedResults[0].OldRank)
	assert.Equal(t, 1, *second.ChangedResults[0].OldRank)
	assert.Equal(t, 1, second.ChangedResults[0].Rank)
}

func TestQueryNSecondDistinctBatchIsAllChanged(t *testing.T) {
	p := &fakeQueryProvider{name: "img", hits: []provider.ChunkQueryResult{chunkHit("/a.png", 10)}}
	store := newStore(t)
	fq := New([]provider.Provider{p}, store, 0, nil)

	first, err := fq.QueryN(context.Background(), "cats", 10, nil)
	require.NoError(t, err)

	p.hits = []provider.ChunkQueryResult{chunkHit("/z.png", 90)}
	second, err := fq.QueryN(context.Background(), "cats", 10, first.CursorID)
	require.NoError(t, err)
	assert.Equal(t, 2, second.ResultsLen)
	// /z.png is brand new; /a.png's rank dropped from 1 to 2.
	byPath := map[string]RankDiff{}
	for _, d := range second.ChangedResults {
		byPath[d.Path] = d
	}
	require.Contains(t, byPath, "/z.png")
	assert.Nil(t, byPath["/z.png"].OldRank)
	require.Contains(t, byPath, "/a.png")
	require.NotNil(t, byPath["/a.png"].OldRank)
	assert.Equal(t, 1, *byPath["/a.png"].OldRank)
	assert.Equal(t, 2, byPath["/a.png"].Rank)
}

func TestQueryNEndOfStreamWhenNoNewRows(t *testing.T) {
	p := &fakeQueryProvider{name: "img"} // no hits at all
	fq := New([]provider.Provider{p}, newStore(t), 0, nil)

	resp, err := fq.QueryN(context.Background(), "cats", 10, nil)
	require.NoError(t, err)
	assert.Nil(t, resp.CursorID)
	assert.Empty(t, resp.ChangedResults)
}

func TestQueryNUnknownCursorIsCursorNotFound(t *testing.T) {
	p := &fakeQueryProvider{name: "img"}
	fq := New([]provider.Provider{p}, newStore(t), 0, nil)

	bogus := "does-not-exist"
	_, err := fq.QueryN(context.Background(), "cats", 10, &bogus)
	require.Error(t, err)
}

func TestQueryNReturnsErrorWhenAllProvidersFail(t *testing.T) {
	p := &fakeQueryProvider{name: "img", err: errors.New("boom")}
	fq := New([]provider.Provider{p}, newStore(t), 0, nil)

	_, err := fq.QueryN(context.Background(), "cats", 10, nil)
	require.Error(t, err)
}

func TestQueryNToleratesPartialProviderFailure(t *testing.T) {
	ok := &fakeQueryProvider{name: "ok", hits: []provider.ChunkQueryResult{chunkHit("/a.png", 5)}}
	bad := &fakeQueryProvider{name: "bad", err: errors.New("boom")}
	fq := New([]provider.Provider{ok, bad}, newStore(t), 0, nil)

	resp, err := fq.QueryN(context.Background(), "cats", 10, nil)
	require.NoError(t, err)
	require.NotNil(t, resp.CursorID)
	assert.Equal(t, 1, resp.ResultsLen)
}

func TestFirstErrIsDeterministicAcrossMapOrder(t *testing.T) {
	errA := errors.New("a failed")
	errZ := errors.New("z failed")
	m := map[string]error{"z": errZ, "a": errA}
	for i := 0; i < 20; i++ {
		assert.Same(t, errA, firstErr(m))
	}
}

func TestFirstErrEmptyMap(t *testing.T) {
	assert.Nil(t, firstErr(map[string]error{}))
}

func TestDiffRanksOmitsUnchangedEntries(t *testing.T) {
	old := map[string]cursor.RankedEntry{
		"/a.png": {Path: "/a.png", Rank: 1, Score: 10},
	}
	newRanked := []cursor.RankedEntry{
		{Path: "/a.png", Rank: 1, Score: 10},
		{Path: "/b.png", Rank: 2, Score: 5},
	}
	changed := diffRanks(old, newRanked)
	require.Len(t, changed, 1)
	assert.Equal(t, "/b.png", changed[0].Path)
	assert.Nil(t, changed[0].OldRank)
}

func TestDiffRanksReportsRankChangeForKnownFile(t *testing.T) {
	old := map[string]cursor.RankedEntry{
		"/a.png": {Path: "/a.png", Rank: 2, Score: 5},
	}
	newRanked := []cursor.RankedEntry{
		{Path: "/a.png", Rank: 1, Score: 50},
	}
	changed := diffRanks(old, newRanked)
	require.Len(t, changed, 1)
	require.NotNil(t, changed[0].OldRank)
	assert.Equal(t, 2, *changed[0].OldRank)
	assert.Equal(t, 1, changed[0].Rank)
}
