// Package querylog provides a SQLite-backed append-only record of every
// query the pipeline handles. A pending record is appended when a query
// arrives and updated exactly once with the outcome — answer, timing, and
// retrieved-document count on success, or the error message on failure — so
// every query leaves a trace even when a stage fails.
package querylog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/kbase-ai/kbq-go/internal/rag"
)

// QueryType distinguishes how the query entered the system.
type QueryType string

const (
	// TypeText is a typed query.
	TypeText QueryType = "text"
	// TypeVoice is a query transcribed from speech before entering the pipeline.
	TypeVoice QueryType = "voice"
)

// Record is one logged query with its outcome.
type Record struct {
	// ID is the record identifier, assigned on append.
	ID string
	// Query is the raw query text.
	Query string
	// Type is how the query entered the system.
	Type QueryType
	// Answer is the generated answer, empty while pending.
	Answer string
	// Error is the failure message, empty on success.
	Error string
	// Documents is the number of documents retrieved for the answer.
	Documents int
	// Duration is the end-to-end processing time, zero while pending.
	Duration time.Duration
	// CreatedAt is when the query was received.
	CreatedAt time.Time
}

// Outcome is the patch applied to a pending record when the query finishes.
type Outcome struct {
	// Answer is the generated answer text.
	Answer string
	// Error is the failure message when the pipeline errored.
	Error string
	// Documents is the retrieved-document count.
	Documents int
	// Duration is the end-to-end processing time.
	Duration time.Duration
}

// Store persists query records. Implementations must be safe for concurrent
// writers — multiple queries log simultaneously.
type Store interface {
	// Append persists a pending record and returns its id.
	Append(ctx context.Context, query string, qt QueryType) (string, error)
	// Update applies the outcome to a previously appended record.
	Update(ctx context.Context, id string, out Outcome) error
	// List returns the most recent records, newest first, at most limit.
	List(ctx context.Context, limit int) ([]Record, error)
	// Get returns a single record, or rag.ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying connection pool.
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (or creates) a SQLiteStore at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("querylog: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS query_log (
    id          TEXT    PRIMARY KEY,
    query       TEXT    NOT NULL,
    query_type  TEXT    NOT NULL CHECK(query_type IN ('text','voice')),
    answer      TEXT    NOT NULL DEFAULT '',
    error       TEXT    NOT NULL DEFAULT '',
    documents   INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_query_log_created
    ON query_log (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("querylog: migrate: %w", err)
	}
	return nil
}

// Append persists a pending record and returns its generated id.
func (s *SQLiteStore) Append(ctx context.Context, query string, qt QueryType) (string, error) {
	if qt == "" {
		qt = TypeText
	}
	id := uuid.NewString()
	const q = `INSERT INTO query_log (id, query, query_type, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, id, query, string(qt), time.Now().Unix()); err != nil {
		return "", fmt.Errorf("querylog: append: %w", err)
	}
	return id, nil
}

// Update applies the outcome to an existing record.
func (s *SQLiteStore) Update(ctx context.Context, id string, out Outcome) error {
	const q = `UPDATE query_log SET answer = ?, error = ?, documents = ?, duration_ms = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, out.Answer, out.Error, out.Documents, out.Duration.Milliseconds(), id)
	if err != nil {
		return fmt.Errorf("querylog: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("querylog: update rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("querylog: record %q: %w", id, rag.ErrNotFound)
	}
	return nil
}

// List returns the most recent records, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, query, query_type, answer, error, documents, duration_ms, created_at
FROM   query_log
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("querylog: list: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("querylog: list scan: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querylog: list rows: %w", err)
	}
	return recs, nil
}

// Get returns a single record by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	const q = `
SELECT id, query, query_type, answer, error, documents, duration_ms, created_at
FROM   query_log WHERE id = ?`

	row := s.db.QueryRowContext(ctx, q, id)
	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return Record{}, fmt.Errorf("querylog: record %q: %w", id, rag.ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("querylog: get: %w", err)
	}
	return rec, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("querylog: close: %w", err)
	}
	return nil
}

// scanRecord reads one row via the given scan function.
func scanRecord(scan func(...any) error) (Record, error) {
	var (
		rec   Record
		qt    string
		durMs int64
		ts    int64
	)
	if err := scan(&rec.ID, &rec.Query, &qt, &rec.Answer, &rec.Error, &rec.Documents, &durMs, &ts); err != nil {
		return Record{}, err
	}
	rec.Type = QueryType(qt)
	rec.Duration = time.Duration(durMs) * time.Millisecond
	rec.CreatedAt = time.Unix(ts, 0)
	return rec, nil
}
