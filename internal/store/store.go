package store

import (
	"context"
	"errors"
)

// Document is a schemaless record stored in a collection
type Document map[string]any

// ErrNotFound is returned when a document does not exist
var ErrNotFound = errors.New("document not found")

// Write is a single operation inside a batch commit
type Write struct {
	Collection string
	ID         string
	Data       Document
	Merge      bool
}

// QueryResult pairs a document with its ID
type QueryResult struct {
	ID   string
	Data Document
}

// Store is the durable document store the gateway persists to.
// Set with merge performs a shallow field merge into the existing document.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, data Document, merge bool) error
	Add(ctx context.Context, collection string, data Document) (string, error)
	Query(ctx context.Context, collection, field string, value any, limit int) ([]QueryResult, error)
	BatchCommit(ctx context.Context, writes []Write) error
}

// Merged returns base shallow-merged with overlay. Neither input is modified.
func Merged(base, overlay Document) Document {
	out := make(Document, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy of the document
func Clone(d Document) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
