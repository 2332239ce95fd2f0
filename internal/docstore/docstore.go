// Package docstore persists source documents in a local SQLite database.
// It is the system of record the ingestion pipeline reads from: documents
// are created and edited here, then chunked, embedded, and pushed into the
// vector index in bulk.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/kbase-ai/kbq-go/internal/rag"
)

// SQLiteStore implements rag.DocumentStore on top of SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ rag.DocumentStore = (*SQLiteStore)(nil)

// Open opens (or creates) the store at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("docstore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    id         TEXT    PRIMARY KEY,
    title      TEXT    NOT NULL DEFAULT '',
    content    TEXT    NOT NULL,
    metadata   TEXT    NOT NULL DEFAULT '{}',  -- JSON object of string pairs
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_updated
    ON documents (updated_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("docstore: migrate: %w", err)
	}
	return nil
}

// Create persists a new document. A missing ID is assigned; an empty content
// is rejected with rag.ErrInvalidInput. Returns the stored document.
func (s *SQLiteStore) Create(ctx context.Context, doc rag.Document) (rag.Document, error) {
	if doc.Content == "" {
		return rag.Document{}, fmt.Errorf("docstore: create: empty content: %w", rag.ErrInvalidInput)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	meta, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return rag.Document{}, fmt.Errorf("docstore: create: %w", err)
	}

	now := time.Now().Unix()
	const q = `INSERT INTO documents (id, title, content, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, doc.ID, doc.Title, doc.Content, meta, now, now); err != nil {
		return rag.Document{}, fmt.Errorf("docstore: create %q: %w", doc.ID, err)
	}
	return doc, nil
}

// Get returns a document by id, or rag.ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (rag.Document, error) {
	const q = `SELECT id, title, content, metadata FROM documents WHERE id = ?`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, q, id).Scan)
	if err == sql.ErrNoRows {
		return rag.Document{}, fmt.Errorf("docstore: document %q: %w", id, rag.ErrNotFound)
	}
	if err != nil {
		return rag.Document{}, fmt.Errorf("docstore: get %q: %w", id, err)
	}
	return doc, nil
}

// List returns all documents ordered by most recently updated.
func (s *SQLiteStore) List(ctx context.Context) ([]rag.Document, error) {
	const q = `SELECT id, title, content, metadata FROM documents ORDER BY updated_at DESC, id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("docstore: list: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// Update applies the non-empty fields of patch to the stored document and
// returns the result. A missing id surfaces rag.ErrNotFound.
func (s *SQLiteStore) Update(ctx context.Context, id string, patch rag.Document) (rag.Document, error) {
	if id == "" {
		return rag.Document{}, fmt.Errorf("docstore: update: missing id: %w", rag.ErrInvalidInput)
	}

	doc, err := s.Get(ctx, id)
	if err != nil {
		return rag.Document{}, err
	}
	if patch.Title != "" {
		doc.Title = patch.Title
	}
	if patch.Content != "" {
		doc.Content = patch.Content
	}
	if patch.Metadata != nil {
		doc.Metadata = patch.Metadata
	}

	meta, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return rag.Document{}, fmt.Errorf("docstore: update: %w", err)
	}

	const q = `UPDATE documents SET title = ?, content = ?, metadata = ?, updated_at = ? WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, q, doc.Title, doc.Content, meta, time.Now().Unix(), id); err != nil {
		return rag.Document{}, fmt.Errorf("docstore: update %q: %w", id, err)
	}
	return doc, nil
}

// Delete removes a document by id. Deleting an absent document is an error.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("docstore: delete %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("docstore: delete rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("docstore: document %q: %w", id, rag.ErrNotFound)
	}
	return nil
}

// Search returns documents whose title or content contains the query text,
// case-insensitively. This is a plain substring scan, not semantic search;
// semantic retrieval goes through the vector index.
func (s *SQLiteStore) Search(ctx context.Context, query string) ([]rag.Document, error) {
	const q = `
SELECT id, title, content, metadata
FROM   documents
WHERE  title LIKE ? COLLATE NOCASE OR content LIKE ? COLLATE NOCASE
ORDER  BY updated_at DESC, id`

	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, q, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("docstore: search: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("docstore: close: %w", err)
	}
	return nil
}

func collectDocuments(rows *sql.Rows) ([]rag.Document, error) {
	var docs []rag.Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("docstore: scan: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: rows: %w", err)
	}
	return docs, nil
}

func scanDocument(scan func(...any) error) (rag.Document, error) {
	var (
		doc  rag.Document
		meta string
	)
	if err := scan(&doc.ID, &doc.Title, &doc.Content, &meta); err != nil {
		return rag.Document{}, err
	}
	if meta != "" && meta != "{}" {
		if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
			return rag.Document{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return doc, nil
}

func encodeMetadata(meta map[string]string) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}
