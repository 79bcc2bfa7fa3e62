package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// A zero value marks a claim
type ttlEntry[T any] struct {
	data   T
	stored bool
}

// ttlCache is the in-memory backend, ttlcache evicts expired entries in the background
type ttlCache[T any] struct {
	items *ttlcache.Cache[string, ttlEntry[T]]
}

func (c *ttlCache[T]) lookupOrClaim(ctx context.Context, key string) lookup[T] {
	// Claims take the default ttl, so an abandoned claim eventually expires
	item, existed := c.items.GetOrSet(key, ttlEntry[T]{})
	if !existed {
		return lookup[T]{state: lookupClaimed}
	}

	entry := item.Value()
	if !entry.stored {
		return lookup[T]{state: lookupPending}
	}
	return lookup[T]{data: entry.data, state: lookupHit}
}

func (c *ttlCache[T]) store(ctx context.Context, key string, data T, ttl time.Duration) {
	c.items.Set(key, ttlEntry[T]{data: data, stored: true}, ttl)
}

func (c *ttlCache[T]) release(ctx context.Context, key string) {
	item := c.items.Get(key)
	if item != nil && !item.Value().stored {
		c.items.Delete(key)
	}
}

func (c *ttlCache[T]) backoff(ctx context.Context) error {
	return sleepCtx(ctx, 50*time.Millisecond)
}

func (c *ttlCache[T]) Len() int {
	return c.items.Len()
}

// Stop the background expiry loop
func (c *ttlCache[T]) Stop() {
	c.items.Stop()
}

func NewTTLCache[T any](claimTTL time.Duration) *ttlCache[T] {
	items := ttlcache.New(
		ttlcache.WithTTL[string, ttlEntry[T]](claimTTL),
		ttlcache.WithDisableTouchOnHit[string, ttlEntry[T]](),
	)
	go items.Start()
	return &ttlCache[T]{items: items}
}
