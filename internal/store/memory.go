package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process document store. It backs tests and counts
// read operations so callers can assert hot paths never touch it.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]Document
	reads       int
	writes      int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Document),
	}
}

// Reads returns the number of Get/Query operations performed
func (m *MemoryStore) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Writes returns the number of write operations performed
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Get returns a document by collection and id
func (m *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++

	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return Clone(doc), nil
}

// Set writes a document, optionally merging into the existing one
func (m *MemoryStore) Set(ctx context.Context, collection, id string, data Document, merge bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.set(collection, id, data, merge)
	return nil
}

// Add writes a document under a generated id and returns the id
func (m *MemoryStore) Add(ctx context.Context, collection string, data Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++

	id := uuid.NewString()
	m.set(collection, id, data, false)
	return id, nil
}

// Query returns documents whose top-level field equals value
func (m *MemoryStore) Query(ctx context.Context, collection, field string, value any, limit int) ([]QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++

	var results []QueryResult
	for id, doc := range m.collections[collection] {
		if doc[field] == value {
			results = append(results, QueryResult{ID: id, Data: Clone(doc)})
			if len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

// BatchCommit applies all writes as one unit
func (m *MemoryStore) BatchCommit(ctx context.Context, writes []Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++

	for _, w := range writes {
		m.set(w.Collection, w.ID, w.Data, w.Merge)
	}
	return nil
}

func (m *MemoryStore) set(collection, id string, data Document, merge bool) {
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]Document)
		m.collections[collection] = docs
	}

	if merge {
		if existing, ok := docs[id]; ok {
			docs[id] = Merged(existing, data)
			return
		}
	}
	docs[id] = Clone(data)
}
