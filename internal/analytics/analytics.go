// Package analytics records payment lifecycle events, revenue and
// failures. Event emission is fire-and-forget: producers only enqueue,
// a background task flushes batches to the durable store and re-queues
// the batch when a flush fails.
package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"mpesa-payment-gateway/internal/model"
	"mpesa-payment-gateway/internal/store"
	"mpesa-payment-gateway/pkg/logger"
)

const (
	eventCollection   = "payment_analytics"
	revenueCollection = "revenue_stats"
	failureCollection = "payment_failures"
)

// Event is one payment lifecycle event
type Event struct {
	Event     string  `json:"event"`
	PaymentID string  `json:"paymentId"`
	UserID    string  `json:"userId"`
	Amount    float64 `json:"amount"`
	Details   any     `json:"details,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// Analytics owns the event queue and the revenue/failure logs
type Analytics struct {
	mu    sync.Mutex
	queue []Event

	docs      store.Store
	log       *logger.Logger
	batchSize int
	now       func() time.Time
}

// New creates an analytics recorder flushing in batches of batchSize
func New(docs store.Store, batchSize int, log *logger.Logger) *Analytics {
	return &Analytics{
		docs:      docs,
		log:       log,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// SetClock overrides the time source, for tests
func (a *Analytics) SetClock(clock func() time.Time) {
	a.now = clock
}

// Enqueue queues an event for the next flush. Never blocks, never fails.
func (a *Analytics) Enqueue(event Event) {
	if event.Timestamp == "" {
		event.Timestamp = a.now().UTC().Format(time.RFC3339)
	}

	a.mu.Lock()
	a.queue = append(a.queue, event)
	a.mu.Unlock()
}

// Pending returns the number of unflushed events
func (a *Analytics) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

// Flush writes one batch to the durable store. A failed batch is put back
// at the front of the queue for the next flush.
func (a *Analytics) Flush(ctx context.Context) {
	a.mu.Lock()
	if len(a.queue) == 0 {
		a.mu.Unlock()
		return
	}
	n := a.batchSize
	if n > len(a.queue) {
		n = len(a.queue)
	}
	batch := a.queue[:n]
	a.queue = a.queue[n:]
	a.mu.Unlock()

	for i, event := range batch {
		_, err := a.docs.Add(ctx, eventCollection, store.Document{
			"event":     event.Event,
			"paymentId": event.PaymentID,
			"userId":    event.UserID,
			"amount":    event.Amount,
			"details":   event.Details,
			"timestamp": event.Timestamp,
		})
		if err != nil {
			a.log.Warn("Failed to flush payment events, will retry",
				"error", err,
				"requeued", len(batch)-i,
			)
			a.mu.Lock()
			a.queue = append(batch[i:], a.queue...)
			a.mu.Unlock()
			return
		}
	}

	a.log.Debug("Flushed payment events", "count", len(batch))
}

// Run flushes the queue on the given interval until ctx is done
func (a *Analytics) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Flush(ctx)
		}
	}
}

// LogRevenue accumulates a successful payment into the per-day revenue
// document. Amounts are accumulated as decimals to avoid float drift.
func (a *Analytics) LogRevenue(ctx context.Context, userID, paymentID string, amount float64) error {
	day := a.now().UTC().Format("2006-01-02")

	total := decimal.NewFromFloat(amount)
	transactions := int64(1)

	existing, err := a.docs.Get(ctx, revenueCollection, day)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err == nil {
		if prev, perr := decimal.NewFromString(asString(existing["total"])); perr == nil {
			total = total.Add(prev)
		}
		if prevCount, ok := model.Number(existing["transactions"]); ok {
			transactions += int64(prevCount)
		}
	}

	return a.docs.Set(ctx, revenueCollection, day, store.Document{
		"total":         total.String(),
		"transactions":  transactions,
		"lastPaymentId": paymentID,
		"lastUserId":    userID,
		"method":        "mpesa",
		"updatedAt":     a.now().UTC().Format(time.RFC3339),
	}, true)
}

// LogFailure records a failed payment attempt
func (a *Analytics) LogFailure(ctx context.Context, userID, reason string, details any) error {
	_, err := a.docs.Add(ctx, failureCollection, store.Document{
		"userId":    userID,
		"reason":    reason,
		"details":   details,
		"timestamp": a.now().UTC().Format(time.RFC3339),
	})
	return err
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return "0"
}
