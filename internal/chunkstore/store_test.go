package chunkstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fetchgo/internal/schema"
)

// testRow is a minimal row type exercising the generic store independent of
// the production schema.Chunk/cursor row shapes.
type testRow struct {
	Key    string
	Seq    uint64
	Tag    string
	Text   string
	Vector []float32
}

type testCodec struct {
	dim int
}

func (c testCodec) Columns() []Column {
	return []Column{
		{Name: "tag", Type: ColumnText},
		{Name: "text", Type: ColumnText},
	}
}

func (c testCodec) FilterableAttributes() map[string]bool { return map[string]bool{"tag": true} }
func (c testCodec) FTSAttributes() map[string]bool        { return map[string]bool{"text": true} }
func (c testCodec) Dimension() int                         { return c.dim }

func (c testCodec) KeyOf(r testRow) (string, error)    { return r.Key, nil }
func (c testCodec) SequenceNumberOf(r testRow) uint64  { return r.Seq }
func (c testCodec) VectorOf(r testRow) []float32       { return r.Vector }
func (c testCodec) FTSContentOf(r testRow) string      { return r.Text }

func (c testCodec) ValuesOf(r testRow) (map[string]any, error) {
	return map[string]any{"tag": r.Tag, "text": r.Text}, nil
}

func (c testCodec) FromRow(key string, seq uint64, values map[string]any) (testRow, error) {
	r := testRow{Key: key, Seq: seq}
	if v, ok := values["tag"].(string); ok {
		r.Tag = v
	}
	if v, ok := values["text"].(string); ok {
		r.Text = v
	}
	return r, nil
}

func openTest(t *testing.T, dim int) *Store[testRow] {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open[testRow](path, "rows", testCodec{dim: dim}, 20, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutThenQueryFilterNRoundTrips(t *testing.T) {
	s := openTest(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, []testRow{{Key: "a", Seq: 1, Tag: "x", Text: "hello"}}))

	rows, err := s.QueryFilterN(ctx, []schema.Filter{{Attribute: "tag", Relation: schema.RelationEqual, Value: "x"}}, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].Key)
	assert.Equal(t, "hello", rows[0].Text)
}

func TestPutRejectsStaleSequenceNumber(t *testing.T) {
	s := openTest(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, []testRow{{Key: "a", Seq: 10, Tag: "new"}}))
	require.NoError(t, s.Put(ctx, []testRow{{Key: "a", Seq: 5, Tag: "stale"}}))

	row, ok, err := s.GetByKey(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", row.Tag, "a stale write (seq <= stored) must not overwrite")
}

func TestPutAcceptsStrictlyNewerSequenceNumber(t *testing.T) {
	s := openTest(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, []testRow{{Key: "a", Seq: 5, Tag: "old"}}))
	require.NoError(t, s.Put(ctx, []testRow{{Key: "a", Seq: 6, Tag: "new"}}))

	row, ok, err := s.GetByKey(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", row.Tag)
}

func TestQueryFilterNRejectsUndeclaredAttribute(t *testing.T) {
	s := openTest(t, 0)
	_, err := s.QueryFilterN(context.Background(), []schema.Filter{{Attribute: "nope", Relation: schema.RelationEqual, Value: "x"}}, 10, 0)
	require.Error(t, err)
}

func TestPutRejectsEmptyVectorWhenDimensionDeclared(t *testing.T) {
	s := openTest(t, 3)
	err := s.Put(context.Background(), []testRow{{Key: "a", Seq: 1}})
	require.Error(t, err)
}

func TestPutRejectsWrongLengthVectorWithoutPartialWrite(t *testing.T) {
	s := openTest(t, 3)
	ctx := context.Background()

	err := s.Put(ctx, []testRow{{Key: "a", Seq: 1, Vector: []float32{1, 2}}})
	require.Error(t, err)

	_, ok, err := s.GetByKey(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok, "a row rejected for vector length must not land in the base table")
}

func TestQueryVectorNReturnsNearestByKey(t *testing.T) {
	s := openTest(t, 2)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, []testRow{
		{Key: "near", Seq: 1, Vector: []float32{1, 0}},
		{Key: "far", Seq: 1, Vector: []float32{0, 1}},
	}))

	hits, err := s.QueryVectorN(ctx, []float32{1, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "near", hits[0].Key)
}

func TestQueryVectorNSurvivesCloseAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	ctx := context.Background()

	s, err := Open[testRow](path, "rows", testCodec{dim: 2}, 20, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, []testRow{
		{Key: "near", Seq: 1, Vector: []float32{1, 0}},
		{Key: "far", Seq: 1, Vector: []float32{0, 1}},
	}))
	require.NoError(t, s.Close())

	// A fresh Store over the same file, as a separate CLI invocation would
	// open it, must rebuild its vector index from the persisted rows rather
	// than starting empty.
	reopened, err := Open[testRow](path, "rows", testCodec{dim: 2}, 20, nil)
	require.NoError(t, err)
	defer reopened.Close()

	hits, err := reopened.QueryVectorN(ctx, []float32{1, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "near", hits[0].Key)
}

func TestQueryVectorNWithoutDimensionIsCallerError(t *testing.T) {
	s := openTest(t, 0)
	_, err := s.QueryVectorN(context.Background(), []float32{1, 2}, 10, 0)
	require.Error(t, err)
}

func TestClearFilterRemovesMatchingRows(t *testing.T) {
	s := openTest(t, 0)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, []testRow{{Key: "a", Seq: 1, Tag: "drop"}, {Key: "b", Seq: 1, Tag: "keep"}}))

	require.NoError(t, s.ClearFilter(ctx, []schema.Filter{{Attribute: "tag", Relation: schema.RelationEqual, Value: "drop"}}))

	rows, err := s.QueryFilterN(ctx, nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].Key)
}

func TestGetByKeyMissingReturnsNotOK(t *testing.T) {
	s := openTest(t, 0)
	_, ok, err := s.GetByKey(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSharedPhysicalFileRefcountsOneLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	a, err := Open[testRow](path, "table_a", testCodec{}, 20, nil)
	require.NoError(t, err)
	b, err := Open[testRow](path, "table_b", testCodec{}, 20, nil)
	require.NoError(t, err, "a second table in the same physical file must not fail to lock")

	require.NoError(t, a.Close())
	// The registry should still hold the lock for b, since only one of the
	// two refs has been released.
	require.NoError(t, b.Close())
}

func TestDropTableRemovesTableContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drop.db")
	s, err := Open[testRow](path, "rows", testCodec{}, 20, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), []testRow{{Key: "a", Seq: 1}}))
	require.NoError(t, s.Close())

	require.NoError(t, DropTable(path, "rows"))

	// Reopening should see a brand-new, empty table rather than erroring on
	// a pre-existing schema mismatch.
	s2, err := Open[testRow](path, "rows", testCodec{}, 20, nil)
	require.NoError(t, err)
	defer s2.Close()

	rows, err := s2.QueryFilterN(context.Background(), nil, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
