// Package token owns the provider access credential shared by all
// request paths: process memory first, the durable store second, remote
// issuance last.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mpesa-payment-gateway/internal/model"
	"mpesa-payment-gateway/internal/store"
	"mpesa-payment-gateway/pkg/logger"
)

// Provenance values for a returned token
const (
	SourceMemory  = "memory"
	SourceDurable = "durable"
	SourceRemote  = "remote"
)

const (
	tokenCollection = "mpesa_tokens"
	tokenDocID      = "current"
)

// ErrAcquisitionFailed wraps remote issuance failures. Callers must not
// proceed with an empty token.
var ErrAcquisitionFailed = errors.New("token acquisition failed")

// Issuer obtains a fresh access token from the provider
type Issuer interface {
	IssueToken(ctx context.Context) (token string, ttl time.Duration, err error)
}

// Token is a valid access credential and where it came from
type Token struct {
	Value     string
	ExpiresAt time.Time
	Source    string
}

// Cache is the process-wide credential cache
type Cache struct {
	mu        sync.Mutex
	value     string
	expiresAt time.Time

	docs   store.Store
	issuer Issuer
	log    *logger.Logger
	now    func() time.Time
}

// NewCache creates a credential cache backed by the durable store and issuer
func NewCache(docs store.Store, issuer Issuer, log *logger.Logger) *Cache {
	return &Cache{
		docs:   docs,
		issuer: issuer,
		log:    log,
		now:    time.Now,
	}
}

// SetClock overrides the cache's clock for tests
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// ValidToken returns an unexpired access token, refreshing it from the
// durable store or the remote issuer as needed. The lock is never held
// across a store or issuer call, so two concurrent callers observing an
// expired token may both refresh; the durable overwrite is last-writer-wins.
func (c *Cache) ValidToken(ctx context.Context) (Token, error) {
	c.mu.Lock()
	now := c.now()
	if c.value != "" && now.Before(c.expiresAt) {
		t := Token{Value: c.value, ExpiresAt: c.expiresAt, Source: SourceMemory}
		c.mu.Unlock()
		return t, nil
	}
	c.mu.Unlock()

	if t, ok := c.fromDurable(ctx, now); ok {
		return t, nil
	}

	return c.refresh(ctx)
}

// fromDurable loads the shared durable credential if it is still valid
func (c *Cache) fromDurable(ctx context.Context, now time.Time) (Token, bool) {
	doc, err := c.docs.Get(ctx, tokenCollection, tokenDocID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.log.Warn("Failed to read durable access token", "error", err)
		}
		return Token{}, false
	}

	value, _ := doc["accessToken"].(string)
	expiresMs, ok := model.Number(doc["expiresAt"])
	if value == "" || !ok {
		return Token{}, false
	}
	expiresAt := time.UnixMilli(int64(expiresMs))
	if !now.Before(expiresAt) {
		return Token{}, false
	}

	c.mu.Lock()
	c.value = value
	c.expiresAt = expiresAt
	c.mu.Unlock()

	return Token{Value: value, ExpiresAt: expiresAt, Source: SourceDurable}, true
}

// refresh issues a new token remotely and writes it through to the
// durable store so other processes benefit from a single refresh.
func (c *Cache) refresh(ctx context.Context) (Token, error) {
	c.log.Info("Fetching new access token from provider")

	value, ttl, err := c.issuer.IssueToken(ctx)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrAcquisitionFailed, err)
	}

	expiresAt := c.now().Add(ttl)

	c.mu.Lock()
	c.value = value
	c.expiresAt = expiresAt
	c.mu.Unlock()

	err = c.docs.Set(ctx, tokenCollection, tokenDocID, store.Document{
		"accessToken": value,
		"expiresAt":   expiresAt.UnixMilli(),
		"updatedAt":   c.now().UTC().Format(time.RFC3339),
	}, true)
	if err != nil {
		// The in-memory token is still valid; other processes just miss out
		c.log.Warn("Failed to persist access token", "error", err)
	}

	return Token{Value: value, ExpiresAt: expiresAt, Source: SourceRemote}, nil
}
