// Package filequery implements the FileQueryer: it drives provider
// queries, folds chunk results into a persisted cursor, diffs ranks
// between the cursor's before/after state, and returns an incremental,
// re-rankable result list.
package filequery

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/fetchgo/internal/cursor"
	"github.com/Aman-CERP/fetchgo/internal/errs"
	"github.com/Aman-CERP/fetchgo/internal/provider"
)

// RankDiff describes one file's rank/score change between the cursor's
// previous and current state.
type RankDiff struct {
	Path    string
	OldRank *int // nil if the file was not ranked before this call
	Rank    int  // 1-indexed
	Score   float32
}

// Response is the FileQueryer's result for one query_n call.
type Response struct {
	ResultsLen     int
	ChangedResults []RankDiff
	CursorID       *string // nil signals end-of-stream
}

// Clock abstracts "now" so tests can control TTL expiry deterministically.
type Clock func() time.Time

// FileQueryer drives provider queries and cursor aggregation.
type FileQueryer struct {
	Providers []provider.Provider
	Cursors   *cursor.Store
	Now       Clock
	Logger    *slog.Logger

	// TTL is the lifetime given to fresh and touched cursors. Zero falls
	// back to the cursor package's default (5 minutes).
	TTL time.Duration
}

// New creates a FileQueryer over providers, persisting cursors in store
// with the given cursor TTL (zero falls back to the package default).
func New(providers []provider.Provider, store *cursor.Store, ttl time.Duration, logger *slog.Logger) *FileQueryer {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileQueryer{Providers: providers, Cursors: store, Now: time.Now, Logger: logger, TTL: ttl}
}

// QueryN loads or creates the cursor, sweeps expired cursors, snapshots
// old ranks, fans out to providers, folds results into the cursor,
// diffs ranks, persists, and returns the incremental change set.
func (q *FileQueryer) QueryN(ctx context.Context, queryText string, numChunks int, cursorID *string) (Response, error) {
	now := q.Now()

	cur, err := q.loadOrCreate(ctx, cursorID, now)
	if err != nil {
		return Response{}, err
	}

	if err := q.Cursors.SweepExpired(ctx, now); err != nil {
		q.Logger.Warn("cursor sweep failed", "error", err)
	}

	oldRankMap := cur.RankMap()

	batches, providerErrors := q.fanOutQuery(ctx, queryText, numChunks, int(cur.CurrOffset))
	if len(providerErrors) == len(q.Providers) && len(q.Providers) > 0 {
		return Response{}, errs.Wrap(errs.KindStore, "all providers failed to query", firstErr(providerErrors))
	}
	for name, err := range providerErrors {
		q.Logger.Warn("provider query failed", "provider", name, "error", err)
	}

	totalRows := 0
	for _, batch := range batches {
		totalRows += len(batch)
		for _, r := range batch {
			cur.AggregateChunk(r.Chunkfile.OriginalFile, r.Score)
		}
	}

	if totalRows == 0 {
		return Response{
			ResultsLen:     len(cur.AggregateScores),
			ChangedResults: nil,
			CursorID:       nil,
		}, nil
	}

	newRanked := cur.Ranked()
	changed := diffRanks(oldRankMap, newRanked)

	cur.CurrOffset += uint32(numChunks)
	cur.TouchTTL(now, q.TTL)
	if err := q.Cursors.Save(ctx, cur); err != nil {
		return Response{}, err
	}

	id := cur.ID
	return Response{
		ResultsLen:     len(cur.AggregateScores),
		ChangedResults: changed,
		CursorID:       &id,
	}, nil
}

func (q *FileQueryer) loadOrCreate(ctx context.Context, cursorID *string, now time.Time) (*cursor.QueryCursor, error) {
	if cursorID == nil {
		return cursor.Fresh(now, q.TTL), nil
	}
	cur, err := q.Cursors.Load(ctx, *cursorID)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

// fanOutQuery runs QueryN against every provider concurrently, collecting
// each provider's batch of results (nil on error) and a provider-keyed
// error map for the ones that failed.
func (q *FileQueryer) fanOutQuery(ctx context.Context, queryText string, limit, offset int) ([][]provider.ChunkQueryResult, map[string]error) {
	type outcome struct {
		name  string
		batch []provider.ChunkQueryResult
		err   error
	}
	results := make([]outcome, len(q.Providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range q.Providers {
		i, p := i, p
		g.Go(func() error {
			batch, err := p.QueryN(gctx, queryText, limit, offset)
			results[i] = outcome{name: p.Name(), batch: batch, err: err}
			return nil
		})
	}
	_ = g.Wait()

	batches := make([][]provider.ChunkQueryResult, 0, len(results))
	providerErrors := make(map[string]error)
	for _, r := range results {
		if r.err != nil {
			providerErrors[r.name] = r.err
			continue
		}
		batches = append(batches, r.batch)
	}
	return batches, providerErrors
}

// diffRanks returns every file whose rank or score changed between
// oldRanks and newRanked: a file at new rank R is omitted only if it
// also held rank R in oldRanks with an equal score.
func diffRanks(oldRanks map[string]cursor.RankedEntry, newRanked []cursor.RankedEntry) []RankDiff {
	var changed []RankDiff
	for _, entry := range newRanked {
		old, existed := oldRanks[entry.Path]
		if existed && old.Rank == entry.Rank && old.Score == entry.Score {
			continue
		}
		diff := RankDiff{Path: entry.Path, Rank: entry.Rank, Score: entry.Score}
		if existed {
			r := old.Rank
			diff.OldRank = &r
		}
		changed = append(changed, diff)
	}
	return changed
}

// firstErr returns the error belonging to the alphabetically first
// failing provider, so repeated calls over the same failure set report
// the same "first" error instead of one picked by map iteration order.
func firstErr(m map[string]error) error {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return m[keys[0]]
}
