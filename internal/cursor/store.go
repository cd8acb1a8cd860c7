package cursor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Aman-CERP/fetchgo/internal/chunkstore"
	"github.com/Aman-CERP/fetchgo/internal/errs"
	"github.com/Aman-CERP/fetchgo/internal/schema"
)

// tableName is the on-disk table name for persisted cursors: keyed by
// id, TTL-filterable.
const tableName = "cursor"

// row is the wire shape persisted for one cursor: the chunk store's
// generic Codec works over a plain struct, same as schema.Chunk.
type row struct {
	ID              string
	AggregateScores map[string]ScoreEntry
	CurrOffset      uint32
	TTL             time.Time
}

// codec adapts row to chunkstore.Store[row]. The cursor table declares no
// vector index (Dimension() == 0) and one filterable/non-FTS column, ttl,
// so expired cursors can be swept with ClearFilter.
type codec struct{}

var _ chunkstore.Codec[row] = codec{}

func (codec) Columns() []chunkstore.Column {
	return []chunkstore.Column{
		{Name: "aggregate_scores", Type: chunkstore.ColumnText},
		{Name: "curr_offset", Type: chunkstore.ColumnInteger},
		{Name: "ttl", Type: chunkstore.ColumnInteger},
	}
}

func (codec) FilterableAttributes() map[string]bool { return map[string]bool{"ttl": true} }
func (codec) FTSAttributes() map[string]bool        { return nil }
func (codec) Dimension() int                        { return 0 }

func (codec) KeyOf(r row) (string, error) { return r.ID, nil }

// SequenceNumberOf uses the cursor's TTL (ns) as the sequence number: every
// touch strictly advances the TTL, so the store's merge-insert semantics
// naturally accept every refresh as newer than what's stored, including
// two refreshes within the same millisecond.
func (codec) SequenceNumberOf(r row) uint64 {
	if ns := r.TTL.UnixNano(); ns > 0 {
		return uint64(ns)
	}
	return 0
}

func (codec) VectorOf(row) []float32 { return nil }

func (codec) FTSContentOf(row) string { return "" }

func (codec) ValuesOf(r row) (map[string]any, error) {
	scores, err := json.Marshal(r.AggregateScores)
	if err != nil {
		return nil, fmt.Errorf("marshal aggregate scores: %w", err)
	}
	return map[string]any{
		"aggregate_scores": string(scores),
		"curr_offset":      int64(r.CurrOffset),
		"ttl":              r.TTL.UnixMilli(),
	}, nil
}

func (codec) FromRow(key string, _ uint64, values map[string]any) (row, error) {
	r := row{ID: key}

	if raw, ok := values["aggregate_scores"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &r.AggregateScores); err != nil {
			return r, fmt.Errorf("unmarshal aggregate scores: %w", err)
		}
	}
	if v, ok := values["curr_offset"].(int64); ok {
		r.CurrOffset = uint32(v)
	}
	if v, ok := values["ttl"].(int64); ok {
		r.TTL = time.UnixMilli(v).UTC()
	}
	return r, nil
}

func toRow(c *QueryCursor) row {
	return row{ID: c.ID, AggregateScores: c.AggregateScores, CurrOffset: c.CurrOffset, TTL: c.TTL}
}

func fromRow(r row) *QueryCursor {
	return &QueryCursor{ID: r.ID, AggregateScores: r.AggregateScores, CurrOffset: r.CurrOffset, TTL: r.TTL}
}

// Store persists QueryCursor values in their own chunk store table,
// reusing the chunk store's merge-insert/filter/sweep machinery rather
// than a bespoke store.
type Store struct {
	table *chunkstore.Store[row]
}

// Open opens (or creates) the cursor table at path.
func Open(path string, compactionPeriod int) (*Store, error) {
	table, err := chunkstore.Open(path, tableName, codec{}, compactionPeriod, nil)
	if err != nil {
		return nil, err
	}
	return &Store{table: table}, nil
}

// Close releases the underlying table handle.
func (s *Store) Close() error { return s.table.Close() }

// Load fetches the cursor with the given id. A missing cursor returns a
// CursorNotFound error.
func (s *Store) Load(ctx context.Context, id string) (*QueryCursor, error) {
	r, ok, err := s.table.GetByKey(ctx, id)
	if err != nil {
		return nil, errs.StoreOp("get", err)
	}
	if !ok {
		return nil, errs.CursorNotFound(id)
	}
	return fromRow(r), nil
}

// Save persists c, refreshing its stored row.
func (s *Store) Save(ctx context.Context, c *QueryCursor) error {
	if err := s.table.Put(ctx, []row{toRow(c)}); err != nil {
		return errs.Wrap(errs.KindCursor, "save cursor", err)
	}
	return nil
}

// SweepExpired evicts every cursor whose ttl is before now.
func (s *Store) SweepExpired(ctx context.Context, now time.Time) error {
	err := s.table.ClearFilter(ctx, []schema.Filter{
		{Attribute: "ttl", Relation: schema.RelationLess, Value: now},
	})
	if err != nil {
		return errs.Wrap(errs.KindCursor, "sweep expired cursors", err)
	}
	return nil
}
