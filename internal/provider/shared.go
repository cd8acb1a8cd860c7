package provider

import (
	"context"
	"os"
	"time"

	"github.com/Aman-CERP/fetchgo/internal/chunkstore"
	"github.com/Aman-CERP/fetchgo/internal/errs"
	"github.com/Aman-CERP/fetchgo/internal/schema"
)

// resolveModified returns modified if non-nil, otherwise the file's
// on-disk modified time, per the index protocol's "last_modified =
// opt_modified ?? fs.modified(path)" step.
func resolveModified(path string, modified *time.Time) (time.Time, error) {
	if modified != nil {
		return *modified, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, errs.Wrap(errs.KindIO, "stat "+path, err)
	}
	return info.ModTime(), nil
}

// checkSequencing looks up any existing chunk for path in table. If one
// exists and lastModified is not strictly newer, it returns a Sequencing
// error (the caller should treat this as a logical no-op). If one exists
// and lastModified is newer, its prior rows are cleared before the caller
// proceeds to re-chunk.
func checkSequencing(ctx context.Context, table ChunkTable, path string, lastModified time.Time) error {
	existing, err := table.QueryFilterN(ctx, []schema.Filter{
		{Attribute: "original_file", Relation: schema.RelationEqual, Value: path},
	}, 1, 0)
	if err != nil {
		return errs.StoreOp("query", err)
	}
	if len(existing) == 0 {
		return nil
	}

	storedModified := existing[0].OriginalFileModifiedDate
	lastSeq := schema.SequenceNumber(lastModified)
	storedSeq := schema.SequenceNumber(storedModified)
	if lastSeq <= storedSeq {
		return errs.Sequencing(lastSeq, storedSeq)
	}

	return clearTable(ctx, table, path, &lastModified)
}

// clearTable deletes every row for path, gated by modified when non-nil:
// only rows stamped at or before modified are removed, so a late clear
// never erases a newer index.
func clearTable(ctx context.Context, table ChunkTable, path string, modified *time.Time) error {
	filters := []schema.Filter{
		{Attribute: "original_file", Relation: schema.RelationEqual, Value: path},
	}
	if modified != nil {
		// Dates are stored in whole milliseconds, so "at or before
		// modified" is "before modified plus one millisecond".
		filters = append(filters, schema.Filter{
			Attribute: "original_file_modified_date",
			Relation:  schema.RelationLess,
			Value:     modified.Add(time.Millisecond),
		})
	}
	if err := table.ClearFilter(ctx, filters); err != nil {
		return errs.StoreOp("clear", err)
	}
	return nil
}

// normalizeScore clamps a raw relevance score into [0,1] against
// [minScore,maxScore] and scales into [0,100], per the per-provider
// MIN_SCORE cutoff / normalization contract. Scores at or below minScore
// are reported as not surviving (ok=false).
func normalizeScore(raw, minScore, maxScore float64) (score float32, ok bool) {
	if raw <= minScore {
		return 0, false
	}
	clamped := (raw - minScore) / (maxScore - minScore)
	if clamped < 0 {
		clamped = 0
	}
	if clamped > 1 {
		clamped = 1
	}
	return float32(clamped * 100), true
}

// normalizeHits converts hybrid store results into provider query results,
// dropping any whose raw score falls at or below minScore. Results are
// expected in descending relevance order, so the cutoff acts as a
// short-circuit on real stores; here it is applied as a plain filter to
// stay correct regardless of ordering.
func normalizeHits(hits []chunkstore.Result[schema.Chunk], minScore float64) []ChunkQueryResult {
	out := make([]ChunkQueryResult, 0, len(hits))
	for _, h := range hits {
		score, ok := normalizeScore(float64(h.Score), minScore, 1.0)
		if !ok {
			continue
		}
		out = append(out, NewChunkQueryResult(h.Row, score))
	}
	return out
}
