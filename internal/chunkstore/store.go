// Package chunkstore implements the hybrid (vector + FTS + scalar filter)
// columnar chunk store: a typed layer over a SQLite base table (key,
// sequence_number, declared columns), an FTS5 virtual table mirroring the
// declared FTS columns, and an in-process HNSW vector index, fused with
// reciprocal-rank fusion for hybrid queries.
//
// Two instances of Store[schema.Chunk] back the siglip2_chunkfile and
// gemma_chunkfile tables; a third instance, over the cursor package's row
// type, backs the cursor table, reusing the same merge-insert/filter/TTL-sweep machinery.
package chunkstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/fetchgo/internal/errs"
	"github.com/Aman-CERP/fetchgo/internal/schema"
)

// fileLocks guards concurrent table-open access to a given database file
// across processes. Multiple tables sharing one file (siglip2_chunkfile
// and gemma_chunkfile both live in store.db) share one lock per path,
// refcounted so the last closer releases it.
var fileLocks = struct {
	mu    sync.Mutex
	byAbs map[string]*refcountedLock
}{byAbs: make(map[string]*refcountedLock)}

type refcountedLock struct {
	flock *flock.Flock
	refs  int
}

func acquireFileLock(path string) (*refcountedLock, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	fileLocks.mu.Lock()
	defer fileLocks.mu.Unlock()

	if rl, ok := fileLocks.byAbs[abs]; ok {
		rl.refs++
		return rl, nil
	}

	f := flock.New(abs + ".lock")
	locked, err := f.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", abs, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s is locked by another process", abs)
	}
	rl := &refcountedLock{flock: f, refs: 1}
	fileLocks.byAbs[abs] = rl
	return rl, nil
}

func releaseFileLock(path string, rl *refcountedLock) {
	if rl == nil {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	fileLocks.mu.Lock()
	defer fileLocks.mu.Unlock()

	rl.refs--
	if rl.refs > 0 {
		return
	}
	_ = rl.flock.Unlock()
	delete(fileLocks.byAbs, abs)
}

// ColumnType is the SQLite storage class used for a declared column.
type ColumnType string

const (
	ColumnText    ColumnType = "TEXT"
	ColumnInteger ColumnType = "INTEGER"
	ColumnReal    ColumnType = "REAL"
	ColumnBlob    ColumnType = "BLOB"
)

// Column describes one non-reserved column of a row type.
type Column struct {
	Name string
	Type ColumnType
}

// Codec adapts a concrete row type R to the store's column layout. Each row
// type (schema.Chunk, the cursor package's row) implements one Codec so a single generic
// Store can serve every table.
type Codec[R any] interface {
	Columns() []Column
	FilterableAttributes() map[string]bool
	FTSAttributes() map[string]bool
	Dimension() int // 0 disables the vector index for this table

	KeyOf(row R) (string, error)
	SequenceNumberOf(row R) uint64
	VectorOf(row R) []float32 // nil/empty when Dimension() == 0
	ValuesOf(row R) (map[string]any, error)
	FTSContentOf(row R) string
	FromRow(key string, seq uint64, values map[string]any) (R, error)
}

// Result pairs a row with its hybrid relevance score in [0,1].
type Result[R any] struct {
	Row   R
	Score float32
}

// Store is a generic columnar chunk store table.
type Store[R any] struct {
	db        *sql.DB
	path      string
	table     string
	codec     Codec[R]
	vector    *vectorIndex
	opCounter atomic.Int64
	period    int64
	logger    *slog.Logger
	lock      *refcountedLock // nil for in-memory tables
}

// Open opens or creates a table at path (or ":memory:" / "" for an
// in-memory table), applying WAL pragmas and a single-writer connection
// pool, matching the store's SQLite FTS5 backend. A file lock guards the
// database file against a second process opening it concurrently,
// matching the original tool's single-writer assumption; tables that
// share one physical file (siglip2_chunkfile and gemma_chunkfile both
// live in store.db) share one refcounted lock.
func Open[R any](path, table string, codec Codec[R], compactionPeriod int, logger *slog.Logger) (*Store[R], error) {
	if logger == nil {
		logger = slog.Default()
	}
	if compactionPeriod <= 0 {
		compactionPeriod = 20
	}

	var lock *refcountedLock
	if path != "" {
		l, err := acquireFileLock(path)
		if err != nil {
			return nil, errs.StoreOp("connection", err)
		}
		lock = l
	}

	dsn := ":memory:"
	if path != "" {
		dsn = path + "?_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		if lock != nil {
			releaseFileLock(path, lock)
		}
		return nil, errs.StoreOp("connection", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			if lock != nil {
				releaseFileLock(path, lock)
			}
			return nil, errs.StoreOp("connection", err)
		}
	}

	s := &Store[R]{
		db:     db,
		path:   path,
		table:  table,
		codec:  codec,
		period: int64(compactionPeriod),
		logger: logger.With("table", table),
		lock:   lock,
	}
	s.opCounter.Store(s.period)

	if dim := codec.Dimension(); dim > 0 {
		s.vector = newVectorIndex(dim)
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		if lock != nil {
			releaseFileLock(path, lock)
		}
		return nil, err
	}

	if s.vector != nil {
		if err := s.loadVectorIndex(context.Background()); err != nil {
			_ = db.Close()
			if lock != nil {
				releaseFileLock(path, lock)
			}
			return nil, err
		}
	}
	return s, nil
}

// loadVectorIndex rebuilds the in-process HNSW graph from the embedding
// vectors already persisted in the table, so a freshly opened store backed
// by an existing database file starts with a populated vector index rather
// than an empty one. A one-shot CLI process indexes and queries in separate
// invocations against the same on-disk table; without this, the graph built
// during `index` would vanish the moment that process exits.
func (s *Store[R]) loadVectorIndex(ctx context.Context) error {
	q := fmt.Sprintf("SELECT %s FROM %s", s.selectColumns(), s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return errs.StoreOp("query", err)
	}
	defer rows.Close()

	scanned, err := s.scanRows(rows)
	if err != nil {
		return err
	}
	for _, row := range scanned {
		vec := s.codec.VectorOf(row)
		if len(vec) == 0 {
			continue
		}
		key, err := s.codec.KeyOf(row)
		if err != nil {
			return errs.Serialization("key", err)
		}
		if err := s.vector.Upsert(key, vec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store[R]) initSchema() error {
	var cols strings.Builder
	for _, c := range s.codec.Columns() {
		fmt.Fprintf(&cols, ", %s %s", c.Name, c.Type)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		sequence_number INTEGER NOT NULL%s
	)`, s.table, cols.String())
	if _, err := s.db.Exec(ddl); err != nil {
		return errs.StoreOp("table-operation", err)
	}

	for attr := range s.codec.FilterableAttributes() {
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)", s.table, attr, s.table, attr)
		if _, err := s.db.Exec(idx); err != nil {
			return errs.StoreOp("table-operation", err)
		}
	}

	if len(s.codec.FTSAttributes()) > 0 {
		ftsDDL := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s_fts USING fts5(
			key UNINDEXED, content, tokenize='unicode61')`, s.table)
		if _, err := s.db.Exec(ftsDDL); err != nil {
			return errs.StoreOp("table-operation", err)
		}
	}

	return nil
}

// DropTable destroys one table (and its FTS mirror, if any) in the
// database file at path, for the CLI's `drop --data-directory
// --table-name` command. It does not require the table's Codec, since a
// drop only needs the table name.
func DropTable(path, table string) error {
	lock, err := acquireFileLock(path)
	if err != nil {
		return errs.StoreOp("connection", err)
	}
	defer releaseFileLock(path, lock)

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return errs.StoreOp("connection", err)
	}
	defer db.Close()

	if _, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
		return errs.StoreOp("table-operation", err)
	}
	if _, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s_fts", table)); err != nil {
		return errs.StoreOp("table-operation", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store[R]) Close() error {
	err := s.db.Close()
	if s.lock != nil {
		releaseFileLock(s.path, s.lock)
	}
	return err
}

// Put performs keyed-sequenced upsert: rows whose key is new are inserted;
// existing rows are replaced only if the incoming sequence_number is
// strictly greater than the stored one. Stale writes are silently skipped,
// matching the store's merge-insert semantics.
func (s *Store[R]) Put(ctx context.Context, rows []R) error {
	for _, row := range rows {
		if err := s.putOne(ctx, row); err != nil {
			return err
		}
	}
	s.noteOp()
	return nil
}

func (s *Store[R]) putOne(ctx context.Context, row R) error {
	key, err := s.codec.KeyOf(row)
	if err != nil {
		return errs.Serialization("key", err)
	}
	seq := s.codec.SequenceNumberOf(row)

	vec := s.codec.VectorOf(row)
	if s.vector != nil && len(vec) != s.vector.dimensions {
		return errs.InvalidVectorLength(len(vec), s.vector.dimensions)
	}

	values, err := s.codec.ValuesOf(row)
	if err != nil {
		return errs.Serialization("row", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.StoreOp("put", err)
	}
	defer func() { _ = tx.Rollback() }()

	var storedSeq sql.NullInt64
	err = tx.QueryRowContext(ctx, fmt.Sprintf("SELECT sequence_number FROM %s WHERE key = ?", s.table), key).Scan(&storedSeq)
	switch {
	case err == sql.ErrNoRows:
		// fresh insert
	case err != nil:
		return errs.StoreOp("put", err)
	default:
		if seq <= uint64(storedSeq.Int64) {
			return nil // sequencing no-op, silently skipped
		}
	}

	cols := []string{"key", "sequence_number"}
	args := []any{key, int64(seq)}
	for _, c := range s.codec.Columns() {
		cols = append(cols, c.Name)
		args = append(args, values[c.Name])
	}

	placeholders := make([]string, len(cols))
	assignments := make([]string, 0, len(cols)-1)
	for i, c := range cols {
		placeholders[i] = "?"
		if c != "key" {
			assignments = append(assignments, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}

	upsert := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(key) DO UPDATE SET %s",
		s.table, strings.Join(cols, ","), strings.Join(placeholders, ","), strings.Join(assignments, ","),
	)
	if _, err := tx.ExecContext(ctx, upsert, args...); err != nil {
		return errs.StoreOp("merge_insert", err)
	}

	if len(s.codec.FTSAttributes()) > 0 {
		content := s.codec.FTSContentOf(row)
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s_fts WHERE key = ?", s.table), key); err != nil {
			return errs.StoreOp("put", err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s_fts(key, content) VALUES (?, ?)", s.table), key, content); err != nil {
			return errs.StoreOp("put", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.StoreOp("put", err)
	}

	if s.vector != nil {
		if err := s.vector.Upsert(key, vec); err != nil {
			return err
		}
	}
	return nil
}

// Clear deletes the row for key; if seq is non-nil, the delete only
// applies when the stored sequence number is strictly less than seq.
func (s *Store[R]) Clear(ctx context.Context, key string, seq *uint64) error {
	defer s.noteOp()

	if seq != nil {
		var stored sql.NullInt64
		err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT sequence_number FROM %s WHERE key = ?", s.table), key).Scan(&stored)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return errs.StoreOp("clear", err)
		}
		if uint64(stored.Int64) >= *seq {
			return nil
		}
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE key = ?", s.table), key); err != nil {
		return errs.StoreOp("clear", err)
	}
	if len(s.codec.FTSAttributes()) > 0 {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s_fts WHERE key = ?", s.table), key); err != nil {
			return errs.StoreOp("clear", err)
		}
	}
	if s.vector != nil {
		s.vector.Delete(key)
	}
	return nil
}

func (s *Store[R]) buildWhere(filters []schema.Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	declared := s.codec.FilterableAttributes()
	clauses := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		if !declared[f.Attribute] {
			return "", nil, errs.UnavailableFilter(f.Attribute)
		}
		val := f.Value
		if t, ok := val.(time.Time); ok {
			val = t.UnixMilli()
		}
		clauses = append(clauses, fmt.Sprintf("%s %s ?", f.Attribute, string(f.Relation)))
		args = append(args, val)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// GetByKey returns the row stored under the reserved key column, if any.
// Unlike QueryFilterN this bypasses the declared-filterable-attribute
// allowlist, since key/sequence_number are reserved columns every table
// carries regardless of what the row type declares filterable.
func (s *Store[R]) GetByKey(ctx context.Context, key string) (R, bool, error) {
	var zero R
	q := fmt.Sprintf("SELECT %s FROM %s WHERE key = ?", s.selectColumns(), s.table)
	rows, err := s.db.QueryContext(ctx, q, key)
	if err != nil {
		return zero, false, errs.StoreOp("query", err)
	}
	defer rows.Close()

	scanned, err := s.scanRows(rows)
	if err != nil {
		return zero, false, err
	}
	if len(scanned) == 0 {
		return zero, false, nil
	}
	return scanned[0], true, nil
}

// QueryFilterN returns rows matching the ANDed filter conjunction, paged.
func (s *Store[R]) QueryFilterN(ctx context.Context, filters []schema.Filter, limit, offset int) ([]R, error) {
	where, args, err := s.buildWhere(filters)
	if err != nil {
		return nil, err
	}
	cols := s.selectColumns()
	q := fmt.Sprintf("SELECT %s FROM %s%s LIMIT ? OFFSET ?", cols, s.table, where)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.StoreOp("query", err)
	}
	defer rows.Close()
	return s.scanRows(rows)
}

// ClearFilter deletes every row matching the filter conjunction.
func (s *Store[R]) ClearFilter(ctx context.Context, filters []schema.Filter) error {
	defer s.noteOp()

	where, args, err := s.buildWhere(filters)
	if err != nil {
		return err
	}

	keys, err := s.keysMatching(ctx, where, args)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s%s", s.table, where), args...); err != nil {
		return errs.StoreOp("delete", err)
	}
	if len(s.codec.FTSAttributes()) > 0 {
		for _, k := range keys {
			if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s_fts WHERE key = ?", s.table), k); err != nil {
				return errs.StoreOp("delete", err)
			}
		}
	}
	if s.vector != nil {
		for _, k := range keys {
			s.vector.Delete(k)
		}
	}
	return nil
}

func (s *Store[R]) keysMatching(ctx context.Context, where string, args []any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT key FROM %s%s", s.table, where), args...)
	if err != nil {
		return nil, errs.StoreOp("query", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errs.StoreOp("query", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// QueryVectorN returns rows by ascending cosine distance to vec.
func (s *Store[R]) QueryVectorN(ctx context.Context, vec []float32, limit, offset int) ([]R, error) {
	if s.vector == nil {
		return nil, errs.New(errs.KindCallerError, "table has no vector index")
	}
	hits, err := s.vector.Search(vec, limit+offset+64)
	if err != nil {
		return nil, err
	}
	if offset >= len(hits) {
		return nil, nil
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	window := hits[offset:end]

	keys := make([]string, len(window))
	for i, h := range window {
		keys[i] = h.Key
	}
	return s.rowsByKeys(ctx, keys)
}

// QueryFullN runs a hybrid query: an optional FTS match, an optional
// vector search, fused with reciprocal-rank fusion, optional filters
// applied as a post-filter over the fused candidate set, paginated.
func (s *Store[R]) QueryFullN(ctx context.Context, queryText string, vec []float32, filters []schema.Filter, limit, offset int) ([]Result[R], error) {
	var bm25Results []bm25Hit
	var vecResults []vectorHit

	g, gctx := errgroup.WithContext(ctx)
	if queryText != "" && len(s.codec.FTSAttributes()) > 0 {
		g.Go(func() error {
			hits, err := s.ftsSearch(gctx, queryText, limit+offset+64)
			bm25Results = hits
			return err
		})
	}
	if len(vec) > 0 && s.vector != nil {
		g.Go(func() error {
			hits, err := s.vector.Search(vec, limit+offset+64)
			vecResults = hits
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errs.Wrap(errs.KindJoin, "Join error occurred", err)
	}

	fused := rrfFuse(bm25Results, vecResults)
	if len(filters) > 0 {
		filtered := make([]fusedRow, 0, len(fused))
		allowed, err := s.filterKeySet(ctx, filters)
		if err != nil {
			return nil, err
		}
		for _, f := range fused {
			if allowed[f.Key] {
				filtered = append(filtered, f)
			}
		}
		fused = filtered
	}

	if offset >= len(fused) {
		return nil, nil
	}
	end := offset + limit
	if end > len(fused) {
		end = len(fused)
	}
	window := fused[offset:end]

	keys := make([]string, len(window))
	for i, f := range window {
		keys[i] = f.Key
	}
	rowsByKey, err := s.rowMapByKeys(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make([]Result[R], 0, len(window))
	for _, f := range window {
		row, ok := rowsByKey[f.Key]
		if !ok {
			continue
		}
		out = append(out, Result[R]{Row: row, Score: float32(f.RRFScore)})
	}
	return out, nil
}

type bm25Hit struct {
	Key   string
	Score float64
}

func (s *Store[R]) ftsSearch(ctx context.Context, queryText string, limit int) ([]bm25Hit, error) {
	q := fmt.Sprintf("SELECT key, bm25(%s_fts) AS score FROM %s_fts WHERE content MATCH ? ORDER BY score LIMIT ?", s.table, s.table)
	rows, err := s.db.QueryContext(ctx, q, queryText, limit)
	if err != nil {
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, errs.StoreOp("query", err)
	}
	defer rows.Close()

	var hits []bm25Hit
	for rows.Next() {
		var key string
		var score float64
		if err := rows.Scan(&key, &score); err != nil {
			return nil, errs.StoreOp("query", err)
		}
		hits = append(hits, bm25Hit{Key: key, Score: -score})
	}
	return hits, rows.Err()
}

func (s *Store[R]) filterKeySet(ctx context.Context, filters []schema.Filter) (map[string]bool, error) {
	where, args, err := s.buildWhere(filters)
	if err != nil {
		return nil, err
	}
	keys, err := s.keysMatching(ctx, where, args)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set, nil
}

func (s *Store[R]) selectColumns() string {
	cols := []string{"key", "sequence_number"}
	for _, c := range s.codec.Columns() {
		cols = append(cols, c.Name)
	}
	return strings.Join(cols, ",")
}

func (s *Store[R]) scanRows(rows *sql.Rows) ([]R, error) {
	colDefs := s.codec.Columns()
	var out []R
	for rows.Next() {
		var key string
		var seq int64
		scanTargets := make([]any, 0, 2+len(colDefs))
		scanTargets = append(scanTargets, &key, &seq)
		raw := make([]any, len(colDefs))
		for i := range colDefs {
			scanTargets = append(scanTargets, &raw[i])
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, errs.StoreOp("query", err)
		}
		values := make(map[string]any, len(colDefs))
		for i, c := range colDefs {
			values[c.Name] = raw[i]
		}
		row, err := s.codec.FromRow(key, uint64(seq), values)
		if err != nil {
			return nil, errs.Serialization("row", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store[R]) rowsByKeys(ctx context.Context, keys []string) ([]R, error) {
	rowsByKey, err := s.rowMapByKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]R, 0, len(keys))
	for _, k := range keys {
		if row, ok := rowsByKey[k]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Store[R]) rowMapByKeys(ctx context.Context, keys []string) (map[string]R, error) {
	result := make(map[string]R, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		placeholders[i] = "?"
		args[i] = k
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE key IN (%s)", s.selectColumns(), s.table, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.StoreOp("query", err)
	}
	defer rows.Close()
	scanned, err := s.scanRows(rows)
	if err != nil {
		return nil, err
	}
	for _, row := range scanned {
		key, err := s.codec.KeyOf(row)
		if err != nil {
			return nil, errs.Serialization("key", err)
		}
		result[key] = row
	}
	return result, nil
}

// noteOp decrements the operation counter and triggers a best-effort
// compaction when it reaches zero, matching the store's default-20-ops
// maintenance cadence. Compaction failures are logged as warnings and do
// not fail the triggering write.
func (s *Store[R]) noteOp() {
	if s.opCounter.Add(-1) > 0 {
		return
	}
	s.opCounter.Store(s.period)
	if _, err := s.db.Exec("PRAGMA optimize"); err != nil {
		s.logger.Warn("compaction failed", "error", err)
	}
}
