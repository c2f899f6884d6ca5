// Package abuse caps repeated attempts per user inside a sliding window
// and flags activity that exceeds it. Counters live in the durable store
// so all processes share one window.
package abuse

import (
	"context"
	"errors"
	"time"

	"mpesa-payment-gateway/internal/model"
	"mpesa-payment-gateway/internal/store"
	"mpesa-payment-gateway/pkg/logger"
)

const (
	attemptCollection  = "suspicious_attempts"
	activityCollection = "suspicious_activity"
)

// Limiter is a sliding-window attempt counter keyed by (user, action)
type Limiter struct {
	docs        store.Store
	log         *logger.Logger
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

// NewLimiter creates a limiter allowing maxAttempts per window
func NewLimiter(docs store.Store, maxAttempts int, window time.Duration, log *logger.Logger) *Limiter {
	return &Limiter{
		docs:        docs,
		log:         log,
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
}

// SetClock overrides the limiter's clock for tests
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

// RegisterAttempt counts one attempt for (userID, action) and reports
// whether the limit is now exceeded. The window restarts once the first
// attempt in it is older than the window.
func (l *Limiter) RegisterAttempt(ctx context.Context, userID, action string) (bool, error) {
	id := userID + "_" + action
	now := l.now()

	attempts := int64(1)
	firstAttempt := now.UnixMilli()

	doc, err := l.docs.Get(ctx, attemptCollection, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	if err == nil {
		if prev, ok := model.Number(doc["attempts"]); ok {
			attempts = int64(prev) + 1
		}
		if first, ok := model.Number(doc["firstAttempt"]); ok {
			firstAttempt = int64(first)
		}
		if now.Sub(time.UnixMilli(firstAttempt)) > l.window {
			attempts = 1
			firstAttempt = now.UnixMilli()
		}
	}

	err = l.docs.Set(ctx, attemptCollection, id, store.Document{
		"attempts":     attempts,
		"firstAttempt": firstAttempt,
	}, true)
	if err != nil {
		return false, err
	}

	return attempts > int64(l.maxAttempts), nil
}

// Flag records a suspicious-activity entry. Best-effort: failures are
// logged, never returned.
func (l *Limiter) Flag(ctx context.Context, userID, action, details, actionTaken string) {
	_, err := l.docs.Add(ctx, activityCollection, store.Document{
		"userId":      userID,
		"type":        action,
		"details":     details,
		"actionTaken": actionTaken,
		"timestamp":   l.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		l.log.Warn("Failed to log suspicious activity", "error", err, "user_id", userID)
	}
}
