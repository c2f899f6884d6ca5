package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCountsReadsAndWrites(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "payments", "p1", Document{"status": "pending"}, false))
	_, err := m.Get(ctx, "payments", "p1")
	require.NoError(t, err)
	_, err = m.Query(ctx, "payments", "status", "pending", 10)
	require.NoError(t, err)

	assert.Equal(t, 2, m.Reads())
	assert.Equal(t, 1, m.Writes())
}

func TestMemoryStoreMerge(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "payments", "p1", Document{"status": "pending", "amount": 100.0}, false))
	require.NoError(t, m.Set(ctx, "payments", "p1", Document{"status": "completed"}, true))

	doc, err := m.Get(ctx, "payments", "p1")
	require.NoError(t, err)
	assert.Equal(t, "completed", doc["status"])
	assert.Equal(t, 100.0, doc["amount"])
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "payments", "p1", Document{"status": "pending"}, false))

	doc, err := m.Get(ctx, "payments", "p1")
	require.NoError(t, err)
	doc["status"] = "tampered"

	fresh, err := m.Get(ctx, "payments", "p1")
	require.NoError(t, err)
	assert.Equal(t, "pending", fresh["status"])
}

func TestMemoryStoreQueryLimit(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, m.Set(ctx, "payments", id, Document{"status": "pending"}, false))
	}

	results, err := m.Query(ctx, "payments", "status", "pending", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
