package cursor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreshCursorHasEmptyStateAndFutureTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fresh(now, 0)
	assert.NotEmpty(t, c.ID)
	assert.Empty(t, c.AggregateScores)
	assert.Equal(t, uint32(0), c.CurrOffset)
	assert.True(t, c.TTL.After(now))
	assert.False(t, c.Expired(now))
}

func TestTouchTTLExtendsExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fresh(now, 0)
	later := now.Add(4 * time.Minute)
	c.TouchTTL(later, 0)
	assert.True(t, c.TTL.After(later))
	assert.False(t, c.Expired(later))
}

func TestFreshHonorsExplicitTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fresh(now, 30*time.Second)
	assert.Equal(t, now.Add(30*time.Second), c.TTL)
}

func TestTouchTTLHonorsExplicitTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fresh(now, 0)
	c.TouchTTL(now, 30*time.Second)
	assert.Equal(t, now.Add(30*time.Second), c.TTL)
}

func TestExpiredReportsPastTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fresh(now, 0)
	assert.True(t, c.Expired(now.Add(6*time.Minute)))
}

func TestAggregateChunkConservesAcrossMultipleChunks(t *testing.T) {
	c := Fresh(time.Now(), 0)
	c.AggregateChunk("/a/b.png", 10)
	c.AggregateChunk("/a/b.png", 30)
	c.AggregateChunk("/a/b.png", 20)

	entry := c.AggregateScores["/a/b.png"]
	assert.Equal(t, float32(30), entry.MaxScore)
	assert.Equal(t, uint32(3), entry.NumChunks)
}

func TestAggregateChunkTracksDistinctFilesIndependently(t *testing.T) {
	c := Fresh(time.Now(), 0)
	c.AggregateChunk("/a.png", 5)
	c.AggregateChunk("/b.png", 50)
	assert.Len(t, c.AggregateScores, 2)
}

func TestChunkMultiplierScoreFormula(t *testing.T) {
	c := Fresh(time.Now(), 0)
	c.AggregateChunk("/a.png", 10)
	c.AggregateChunk("/a.png", 10)
	c.AggregateChunk("/a.png", 10)
	// max_score 10, 3 chunks: 10 + 0.01*3 = 10.03
	assert.InDelta(t, 10.03, c.ChunkMultiplierScore("/a.png"), 1e-6)
}

func TestChunkMultiplierScoreUnknownFileIsZero(t *testing.T) {
	c := Fresh(time.Now(), 0)
	assert.Equal(t, float32(0), c.ChunkMultiplierScore("/unknown.png"))
}

func TestRankedOrdersByScoreDescendingThenPathDescending(t *testing.T) {
	c := Fresh(time.Now(), 0)
	c.AggregateChunk("/a.png", 50) // score 50.01
	c.AggregateChunk("/b.png", 50) // tie on raw score, same num_chunks -> same multiplier
	c.AggregateChunk("/z.png", 90) // highest

	ranked := c.Ranked()
	require.Len(t, ranked, 3)
	assert.Equal(t, "/z.png", ranked[0].Path)
	assert.Equal(t, 1, ranked[0].Rank)
	// tie between /a.png and /b.png breaks reverse-lexicographically: b before a.
	assert.Equal(t, "/b.png", ranked[1].Path)
	assert.Equal(t, "/a.png", ranked[2].Path)
}

func TestRankMapMatchesRanked(t *testing.T) {
	c := Fresh(time.Now(), 0)
	c.AggregateChunk("/a.png", 10)
	c.AggregateChunk("/b.png", 20)

	rm := c.RankMap()
	ranked := c.Ranked()
	require.Len(t, rm, len(ranked))
	for _, r := range ranked {
		assert.Equal(t, r, rm[r.Path])
	}
}
