// Package cursor implements the query cursor: persistent,
// TTL'd, file-path-keyed aggregation state that lets a client
// incrementally pull a living, re-rankable result list.
package cursor

import (
	"time"

	"github.com/google/uuid"
)

// defaultTTL is the cursor's lifetime, refreshed to now+5min on every
// touch.
const defaultTTL = 5 * time.Minute

// ScoreEntry is one file's running aggregation state within a cursor.
type ScoreEntry struct {
	MaxScore  float32
	NumChunks uint32
}

// QueryCursor is the persistent aggregation state backing incremental
// query paging: file path -> {max_score, num_chunks}, a pagination
// offset, and an absolute expiry.
type QueryCursor struct {
	ID              string
	AggregateScores map[string]ScoreEntry
	CurrOffset      uint32
	TTL             time.Time
}

// Fresh creates a new cursor: a new UUID, empty scores, offset 0, and a
// TTL of now+ttl. A zero ttl falls back to defaultTTL (5 minutes).
func Fresh(now time.Time, ttl time.Duration) *QueryCursor {
	return &QueryCursor{
		ID:              uuid.NewString(),
		AggregateScores: make(map[string]ScoreEntry),
		CurrOffset:      0,
		TTL:             now.Add(resolveTTL(ttl)),
	}
}

// TouchTTL refreshes the cursor's expiry to now+ttl. A zero ttl falls back
// to defaultTTL (5 minutes).
func (c *QueryCursor) TouchTTL(now time.Time, ttl time.Duration) {
	c.TTL = now.Add(resolveTTL(ttl))
}

func resolveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return defaultTTL
	}
	return ttl
}

// Expired reports whether the cursor's TTL has passed now.
func (c *QueryCursor) Expired(now time.Time) bool {
	return c.TTL.Before(now)
}

// AggregateChunk folds one scored chunk into the cursor: the running
// maximum score for the file is updated and its chunk count incremented.
func (c *QueryCursor) AggregateChunk(file string, score float32) {
	if c.AggregateScores == nil {
		c.AggregateScores = make(map[string]ScoreEntry)
	}
	entry, ok := c.AggregateScores[file]
	if !ok {
		c.AggregateScores[file] = ScoreEntry{MaxScore: score, NumChunks: 1}
		return
	}
	if score > entry.MaxScore {
		entry.MaxScore = score
	}
	entry.NumChunks++
	c.AggregateScores[file] = entry
}

// ChunkMultiplierScore is the ranking score for file: max_score + 0.01 *
// num_chunks.
func (c *QueryCursor) ChunkMultiplierScore(file string) float32 {
	entry, ok := c.AggregateScores[file]
	if !ok {
		return 0
	}
	return chunkMultiplierScore(entry)
}

func chunkMultiplierScore(e ScoreEntry) float32 {
	return e.MaxScore + 0.01*float32(e.NumChunks)
}

// RankedEntry is one file's position in a cursor's ranked view.
type RankedEntry struct {
	Path  string
	Score float32
	Rank  int // 1-indexed
}

// Ranked returns the cursor's files sorted by chunk_multiplier_score
// descending, then reverse-lexicographic path order, with 1-indexed
// ranks assigned in that order.
func (c *QueryCursor) Ranked() []RankedEntry {
	out := make([]RankedEntry, 0, len(c.AggregateScores))
	for path, entry := range c.AggregateScores {
		out = append(out, RankedEntry{Path: path, Score: chunkMultiplierScore(entry)})
	}
	sortRanked(out)
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// RankMap returns path -> 1-indexed rank for the cursor's current ranked
// view, used to snapshot "old" ranks before a new batch is folded in.
func (c *QueryCursor) RankMap() map[string]RankedEntry {
	ranked := c.Ranked()
	out := make(map[string]RankedEntry, len(ranked))
	for _, r := range ranked {
		out[r.Path] = r
	}
	return out
}

func sortRanked(entries []RankedEntry) {
	// insertion sort is fine: cursors track a modest number of files per
	// query session, and this keeps the tie-break explicit and obviously
	// correct rather than routed through a comparator closure.
	for i := 1; i < len(entries); i++ {
		j := i
		for j > 0 && less(entries[j], entries[j-1]) {
			entries[j], entries[j-1] = entries[j-1], entries[j]
			j--
		}
	}
}

// less reports whether a sorts before b: strictly descending score, then
// reverse-lexicographic path order (b.Path < a.Path).
func less(a, b RankedEntry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Path > b.Path
}
