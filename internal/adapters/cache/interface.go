package cache

import (
	"context"
	"time"
)

type lookupState int

const (
	// No usable entry, the caller now holds the claim and must store or release it
	lookupClaimed lookupState = iota
	lookupHit
	// Another caller holds the claim
	lookupPending
)

type lookup[T any] struct {
	data  T
	state lookupState
}

// Cache is a key/value store where entries expire after their ttl.
//
// A missing or expired entry is claimed by the first caller to see it, so concurrent
// callers back off and wait for the claimant instead of repeating the upstream call.
// Backends that can't hold a claim report every miss as claimed.
type Cache[T any] interface {
	lookupOrClaim(ctx context.Context, key string) lookup[T]
	store(ctx context.Context, key string, data T, ttl time.Duration)
	// release gives up a claim without storing anything
	release(ctx context.Context, key string)
	backoff(ctx context.Context) error
}

// sleepCtx waits for d or until ctx is done
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
