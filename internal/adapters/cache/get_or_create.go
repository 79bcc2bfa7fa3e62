package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pochinki/pochinki/internal/logging"
)

// Source tells where a value from GetOrCreate came from
type Source int

const (
	SourceCreated Source = iota
	SourceCache
)

func (s Source) String() string {
	if s == SourceCache {
		return "cache"
	}
	return "created"
}

// GetOrCreate returns the cached value for key, or calls create and caches its result for ttl.
//
// Failed creations are never cached and the claim is released, so the next caller gets to try
// again. A ttl <= 0 disables storing.
func GetOrCreate[T any](ctx context.Context, cache Cache[T], key string, ttl time.Duration, create func() (T, error)) (T, Source, error) {
	var empty T
	logger := logging.FromContext(ctx).With(slog.String("cacheKey", key))

	for {
		found := cache.lookupOrClaim(ctx, key)

		switch found.state {
		case lookupHit:
			logger.DebugContext(ctx, "Cache hit")
			return found.data, SourceCache, nil
		case lookupClaimed:
			logger.DebugContext(ctx, "Cache miss")
			return createAndStore(ctx, cache, key, ttl, create)
		}

		logger.DebugContext(ctx, "Waiting for cache entry")
		if err := cache.backoff(ctx); err != nil {
			return empty, SourceCache, fmt.Errorf("waiting for cache: %w", err)
		}
	}
}

func createAndStore[T any](ctx context.Context, cache Cache[T], key string, ttl time.Duration, create func() (T, error)) (T, Source, error) {
	stored := false
	defer func() {
		if !stored {
			cache.release(ctx, key)
		}
	}()

	data, err := create()
	if err != nil {
		var empty T
		return empty, SourceCreated, fmt.Errorf("failed to create cache entry: %w", err)
	}

	if ttl > 0 {
		cache.store(ctx, key, data, ttl)
		stored = true
	}

	return data, SourceCreated, nil
}
