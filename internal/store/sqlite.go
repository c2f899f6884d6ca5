package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a document store backed by a single sqlite table
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database and creates the schema if needed
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Create table if not exists
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (collection, id)
		);

		CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns a document by collection and id
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM documents WHERE collection = ? AND id = ?
	`, collection, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Set writes a document, optionally merging into the existing one
func (s *SQLiteStore) Set(ctx context.Context, collection, id string, data Document, merge bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := setInTx(ctx, tx, collection, id, data, merge); err != nil {
		return err
	}
	return tx.Commit()
}

// Add writes a document under a generated id and returns the id
func (s *SQLiteStore) Add(ctx context.Context, collection string, data Document) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, data, false); err != nil {
		return "", err
	}
	return id, nil
}

// Query returns documents whose top-level field equals value
func (s *SQLiteStore) Query(ctx context.Context, collection, field string, value any, limit int) ([]QueryResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data FROM documents
		WHERE collection = ? AND json_extract(data, '$.' || ?) = ?
		ORDER BY updated_at DESC
		LIMIT ?
	`, collection, field, value, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []QueryResult
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var doc Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
		}
		results = append(results, QueryResult{ID: id, Data: doc})
	}
	return results, rows.Err()
}

// BatchCommit applies all writes inside a single transaction
func (s *SQLiteStore) BatchCommit(ctx context.Context, writes []Write) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, w := range writes {
		if err := setInTx(ctx, tx, w.Collection, w.ID, w.Data, w.Merge); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func setInTx(ctx context.Context, tx *sql.Tx, collection, id string, data Document, merge bool) error {
	doc := data
	if merge {
		var raw string
		err := tx.QueryRowContext(ctx, `
			SELECT data FROM documents WHERE collection = ? AND id = ?
		`, collection, id).Scan(&raw)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		if err == nil {
			var existing Document
			if err := json.Unmarshal([]byte(raw), &existing); err != nil {
				return fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
			}
			doc = Merged(existing, data)
		}
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (collection, id)
		DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP
	`, collection, id, string(encoded))
	return err
}
