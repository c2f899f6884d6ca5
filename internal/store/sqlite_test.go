package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteGetMissing(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.Get(context.Background(), "payments", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteSetAndGet(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	err := s.Set(ctx, "payments", "p1", Document{
		"paymentId": "p1",
		"status":    "pending",
		"amount":    100.5,
	}, false)
	require.NoError(t, err)

	doc, err := s.Get(ctx, "payments", "p1")
	require.NoError(t, err)
	assert.Equal(t, "pending", doc["status"])
	assert.Equal(t, 100.5, doc["amount"])
}

func TestSQLiteMergePreservesExistingFields(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "payments", "p1", Document{
		"paymentId": "p1",
		"status":    "pending",
		"amount":    100.0,
	}, false))

	require.NoError(t, s.Set(ctx, "payments", "p1", Document{
		"status": "completed",
	}, true))

	doc, err := s.Get(ctx, "payments", "p1")
	require.NoError(t, err)
	assert.Equal(t, "completed", doc["status"])
	assert.Equal(t, 100.0, doc["amount"])
	assert.Equal(t, "p1", doc["paymentId"])
}

func TestSQLiteSetWithoutMergeReplaces(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "payments", "p1", Document{
		"status": "pending",
		"amount": 100.0,
	}, false))
	require.NoError(t, s.Set(ctx, "payments", "p1", Document{
		"status": "failed",
	}, false))

	doc, err := s.Get(ctx, "payments", "p1")
	require.NoError(t, err)
	assert.Equal(t, "failed", doc["status"])
	assert.NotContains(t, doc, "amount")
}

func TestSQLiteAddGeneratesID(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := s.Add(ctx, "payment_failures", Document{"userId": "u1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := s.Get(ctx, "payment_failures", id)
	require.NoError(t, err)
	assert.Equal(t, "u1", doc["userId"])
}

func TestSQLiteQueryByField(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "paymentStatus", "p1", Document{
		"checkoutRequestId": "ws_1",
		"status":            "pending",
	}, false))
	require.NoError(t, s.Set(ctx, "paymentStatus", "p2", Document{
		"checkoutRequestId": "ws_2",
		"status":            "pending",
	}, false))

	results, err := s.Query(ctx, "paymentStatus", "checkoutRequestId", "ws_1", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].ID)

	results, err = s.Query(ctx, "paymentStatus", "status", "pending", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = s.Query(ctx, "paymentStatus", "checkoutRequestId", "ws_9", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSQLiteQueryScopedToCollection(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "payments", "p1", Document{"userId": "u1"}, false))
	require.NoError(t, s.Set(ctx, "paymentTransactions", "p1", Document{"userId": "u1"}, false))

	results, err := s.Query(ctx, "payments", "userId", "u1", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSQLiteBatchCommit(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "paymentTransactions", "p1", Document{
		"status": "pending",
		"amount": 100.0,
	}, false))

	err := s.BatchCommit(ctx, []Write{
		{Collection: "paymentTransactions", ID: "p1", Data: Document{"status": "completed"}, Merge: true},
		{Collection: "payments", ID: "p1", Data: Document{"status": "completed"}, Merge: true},
	})
	require.NoError(t, err)

	tx, err := s.Get(ctx, "paymentTransactions", "p1")
	require.NoError(t, err)
	assert.Equal(t, "completed", tx["status"])
	assert.Equal(t, 100.0, tx["amount"])

	client, err := s.Get(ctx, "payments", "p1")
	require.NoError(t, err)
	assert.Equal(t, "completed", client["status"])
}
