package service

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"mpesa-payment-gateway/internal/store"
	"mpesa-payment-gateway/pkg/logger"
)

// StatusStore is the status-tracking record store behind a short-lived
// read cache. Hot polling clients hit the cache instead of the durable
// store.
type StatusStore struct {
	docs  store.Store
	cache *gocache.Cache
	log   *logger.Logger
	now   func() time.Time
}

// NewStatusStore creates a status store with the given read-cache TTL
func NewStatusStore(docs store.Store, cacheTTL time.Duration, log *logger.Logger) *StatusStore {
	return &StatusStore{
		docs:  docs,
		cache: gocache.New(cacheTTL, 2*cacheTTL),
		log:   log,
		now:   time.Now,
	}
}

// Cached returns the cached status snapshot for id, if fresh
func (ss *StatusStore) Cached(id string) (store.Document, bool) {
	v, ok := ss.cache.Get(id)
	if !ok {
		return nil, false
	}
	return v.(store.Document), true
}

// Put caches a status snapshot under id
func (ss *StatusStore) Put(id string, doc store.Document) {
	ss.cache.Set(id, store.Clone(doc), gocache.DefaultExpiration)
}

// Get returns the status record for id: read cache first, then the
// durable store, populating the cache on a durable hit.
func (ss *StatusStore) Get(ctx context.Context, id string) (store.Document, error) {
	if doc, ok := ss.Cached(id); ok {
		return doc, nil
	}

	doc, err := ss.docs.Get(ctx, collStatus, id)
	if err != nil {
		return nil, err
	}
	ss.Put(id, doc)
	return doc, nil
}

// Set merge-writes the status record for id. When the candidate status
// equals the last known one the durable write is skipped entirely,
// trading a potential durable read for an avoided write.
func (ss *StatusStore) Set(ctx context.Context, id string, data store.Document) error {
	candidate, _ := data["status"].(string)

	if cached, ok := ss.Cached(id); ok {
		if status, _ := cached["status"].(string); status == candidate {
			return nil
		}
	} else {
		existing, err := ss.docs.Get(ctx, collStatus, id)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err == nil {
			if status, _ := existing["status"].(string); status == candidate {
				ss.Put(id, existing)
				return nil
			}
		}
	}

	doc := store.Clone(data)
	doc["updatedAt"] = ss.now().UTC().Format(time.RFC3339)
	if err := ss.docs.Set(ctx, collStatus, id, doc, true); err != nil {
		return err
	}
	ss.Put(id, doc)
	return nil
}
