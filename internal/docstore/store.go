package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDocumentNotFound is returned when a document id has no row.
var ErrDocumentNotFound = errors.New("document not found")

// DefaultStoreTimeout is the default timeout used for any interaction
// with the storage/database.
var DefaultStoreTimeout = time.Second * 10

// Document is a persisted writing-project document.
type Document struct {
	// ID identifies the document across the whole system.
	ID string `json:"id"`

	// Title is the user-facing document title.
	Title string `json:"title"`

	// Content is the full document text.
	Content string `json:"content"`

	// WordCount is the whitespace-separated word count of Content.
	WordCount int `json:"word_count"`

	// CreatedAt is when the document was first saved.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the content last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentInfo is a listing row: everything but the content.
type DocumentInfo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Size      int       `json:"size"`
	WordCount int       `json:"word_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store provides CRUD access to the documents table.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store instance wrapping the given database
// connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveDocument inserts or replaces a document. CreatedAt is preserved
// on replace; UpdatedAt always advances.
func (s *Store) SaveDocument(ctx context.Context, doc Document) error {
	now := time.Now().Unix()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents
			(id, title, content, content_size, word_count,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			content_size = excluded.content_size,
			word_count = excluded.word_count,
			updated_at = excluded.updated_at`,
		doc.ID, doc.Title, doc.Content, len(doc.Content),
		len(strings.Fields(doc.Content)), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save document %q: %w",
			doc.ID, err)
	}

	return nil
}

// GetDocument fetches one document with its full content.
func (s *Store) GetDocument(ctx context.Context,
	id string) (Document, error) {

	var (
		doc                  Document
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, word_count, created_at, updated_at
		FROM documents
		WHERE id = ?`, id,
	).Scan(
		&doc.ID, &doc.Title, &doc.Content, &doc.WordCount,
		&createdAt, &updatedAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Document{}, fmt.Errorf("%w: %s",
			ErrDocumentNotFound, id)

	case err != nil:
		return Document{}, fmt.Errorf("failed to get document "+
			"%q: %w", id, err)
	}

	doc.CreatedAt = time.Unix(createdAt, 0)
	doc.UpdatedAt = time.Unix(updatedAt, 0)

	return doc, nil
}

// DeleteDocument removes one document.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete document %q: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}

	return nil
}

// ListDocuments returns all documents newest-first, without content.
func (s *Store) ListDocuments(ctx context.Context) ([]DocumentInfo,
	error) {

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content_size, word_count, updated_at
		FROM documents
		ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentInfo
	for rows.Next() {
		var (
			info      DocumentInfo
			updatedAt int64
		)
		err := rows.Scan(
			&info.ID, &info.Title, &info.Size, &info.WordCount,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document "+
				"row: %w", err)
		}

		info.UpdatedAt = time.Unix(updatedAt, 0)
		docs = append(docs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return docs, nil
}
