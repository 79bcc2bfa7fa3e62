package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pochinki/pochinki/internal/reporting"
)

const redisKeyPrefix = "pochinki:cache:"

// redisCache shares entries and claims between processes. Entries rely on redis key expiry,
// claims are separate keys with a short expiry so a crashed claimant can't block a key for long.
type redisCache[T any] struct {
	client *redis.Client

	claimTTL    time.Duration
	backoffTime time.Duration
}

func NewRedis[T any](client *redis.Client) *redisCache[T] {
	return &redisCache[T]{
		client:      client,
		claimTTL:    10 * time.Second,
		backoffTime: 100 * time.Millisecond,
	}
}

func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func redisValueKey(key string) string {
	return redisKeyPrefix + key
}

func redisClaimKey(key string) string {
	return redisKeyPrefix + "claim:" + key
}

func (c *redisCache[T]) lookupOrClaim(ctx context.Context, key string) lookup[T] {
	// Without a working redis every caller does its own work
	unavailable := lookup[T]{state: lookupClaimed}

	value, err := c.client.Get(ctx, redisValueKey(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return c.claim(ctx, key)
	case err != nil:
		err := fmt.Errorf("failed to read cache entry: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"key": key,
		})
		return unavailable
	}

	var data T
	err = json.Unmarshal(value, &data)
	if err != nil {
		err := fmt.Errorf("failed to unmarshal cache entry: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"key": key,
		})
		return unavailable
	}

	return lookup[T]{data: data, state: lookupHit}
}

func (c *redisCache[T]) claim(ctx context.Context, key string) lookup[T] {
	claimed, err := c.client.SetNX(ctx, redisClaimKey(key), 1, c.claimTTL).Result()
	if err != nil {
		err := fmt.Errorf("failed to claim cache entry: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"key": key,
		})
		return lookup[T]{state: lookupClaimed}
	}
	if !claimed {
		return lookup[T]{state: lookupPending}
	}
	return lookup[T]{state: lookupClaimed}
}

func (c *redisCache[T]) store(ctx context.Context, key string, data T, ttl time.Duration) {
	value, err := json.Marshal(data)
	if err != nil {
		err := fmt.Errorf("failed to marshal cache entry: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"key": key,
		})
		c.release(ctx, key)
		return
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisValueKey(key), value, ttl)
		pipe.Del(ctx, redisClaimKey(key))
		return nil
	})
	if err != nil {
		err := fmt.Errorf("failed to write cache entry: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"key": key,
			"ttl": ttl.String(),
		})
	}
}

func (c *redisCache[T]) release(ctx context.Context, key string) {
	err := c.client.Del(ctx, redisClaimKey(key)).Err()
	if err != nil {
		err := fmt.Errorf("failed to release cache claim: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"key": key,
		})
	}
}

func (c *redisCache[T]) backoff(ctx context.Context) error {
	return sleepCtx(ctx, c.backoffTime)
}
