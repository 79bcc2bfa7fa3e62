package cache

import (
	"context"
	"sync"
	"time"
)

type mapEntry[T any] struct {
	data      T
	pending   bool
	expiresAt time.Time
}

type mapCache[T any] struct {
	mu      sync.Mutex
	entries map[string]mapEntry[T]

	// Abandoned claims expire after this long
	claimTTL    time.Duration
	backoffTime time.Duration
	nowFunc     func() time.Time
}

func (c *mapCache[T]) lookupOrClaim(ctx context.Context, key string) lookup[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFunc()

	if entry, ok := c.entries[key]; ok && now.Before(entry.expiresAt) {
		if entry.pending {
			return lookup[T]{state: lookupPending}
		}
		return lookup[T]{data: entry.data, state: lookupHit}
	}

	c.entries[key] = mapEntry[T]{pending: true, expiresAt: now.Add(c.claimTTL)}
	return lookup[T]{state: lookupClaimed}
}

func (c *mapCache[T]) store(ctx context.Context, key string, data T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = mapEntry[T]{data: data, expiresAt: c.nowFunc().Add(ttl)}
}

func (c *mapCache[T]) release(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries[key].pending {
		delete(c.entries, key)
	}
}

func (c *mapCache[T]) backoff(ctx context.Context) error {
	return sleepCtx(ctx, c.backoffTime)
}

// NewBasicCache returns an unbounded in-memory cache that never purges expired entries.
// Intended for tests and tools that need a controllable clock.
func NewBasicCache[T any](nowFunc func() time.Time) *mapCache[T] {
	return &mapCache[T]{
		entries:     make(map[string]mapEntry[T]),
		claimTTL:    time.Minute,
		backoffTime: 10 * time.Millisecond,
		nowFunc:     nowFunc,
	}
}
