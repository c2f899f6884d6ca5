package pending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpesa-payment-gateway/internal/model"
	"mpesa-payment-gateway/pkg/logger"
)

func newTestStore(ttl time.Duration) (*Store, *time.Time) {
	s := NewStore(ttl, logger.New("ERROR"))
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	return s, &now
}

func TestGetReturnsEntryUntilTTL(t *testing.T) {
	s, now := newTestStore(15 * time.Minute)

	s.Add("p1", model.PendingPayment{PaymentID: "p1", UserID: "u1", Amount: 100})

	p, ok := s.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, 100.0, p.Amount)

	// Just inside the TTL
	*now = now.Add(15*time.Minute - time.Second)
	_, ok = s.Get("p1")
	assert.True(t, ok)

	// At exactly the TTL the entry is expired and lazily deleted
	*now = now.Add(time.Second)
	_, ok = s.Get("p1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Count())
}

func TestAddOverwritesExistingEntry(t *testing.T) {
	s, _ := newTestStore(15 * time.Minute)

	s.Add("p1", model.PendingPayment{PaymentID: "p1", Amount: 100})
	s.Add("p1", model.PendingPayment{PaymentID: "p1", Amount: 250})

	p, ok := s.Get("p1")
	require.True(t, ok)
	assert.Equal(t, 250.0, p.Amount)
	assert.Equal(t, 1, s.Count())
}

func TestUpdateDoesNotResurrect(t *testing.T) {
	s, now := newTestStore(15 * time.Minute)

	// Absent key: no-op
	s.Update("missing", func(p *model.PendingPayment) { p.Status = "changed" })
	assert.Equal(t, 0, s.Count())

	// Expired key: no-op, entry stays gone
	s.Add("p1", model.PendingPayment{PaymentID: "p1"})
	*now = now.Add(16 * time.Minute)
	s.Update("p1", func(p *model.PendingPayment) { p.Status = "changed" })
	_, ok := s.Get("p1")
	assert.False(t, ok)
}

func TestUpdateMergesIntoLiveEntry(t *testing.T) {
	s, _ := newTestStore(15 * time.Minute)

	s.Add("p1", model.PendingPayment{PaymentID: "p1", UserID: "u1"})
	s.Update("p1", func(p *model.PendingPayment) { p.CheckoutRequestID = "ws_1" })

	p, ok := s.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "ws_1", p.CheckoutRequestID)
	assert.Equal(t, "u1", p.UserID)
}

func TestRemoveIsIdempotent(t *testing.T) {
	s, _ := newTestStore(15 * time.Minute)

	s.Add("p1", model.PendingPayment{PaymentID: "p1"})
	s.Remove("p1")
	s.Remove("p1")

	_, ok := s.Get("p1")
	assert.False(t, ok)
}

func TestSweepDeletesOnlyExpired(t *testing.T) {
	s, now := newTestStore(15 * time.Minute)

	s.Add("old", model.PendingPayment{PaymentID: "old"})
	*now = now.Add(10 * time.Minute)
	s.Add("fresh", model.PendingPayment{PaymentID: "fresh"})
	*now = now.Add(6 * time.Minute)

	removed := s.Sweep()
	assert.Equal(t, 1, removed)

	_, ok := s.Get("old")
	assert.False(t, ok)
	_, ok = s.Get("fresh")
	assert.True(t, ok)
}
