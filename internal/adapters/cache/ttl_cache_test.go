package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTTLCache(t *testing.T) {
	t.Parallel()

	newCache := func(t *testing.T) *ttlCache[string] {
		t.Helper()
		c := NewTTLCache[string](1000 * time.Second)
		t.Cleanup(c.Stop)
		return c
	}

	t.Run("store and lookup", func(t *testing.T) {
		t.Parallel()
		c := newCache(t)

		c.store(t.Context(), "seasons", "v1", time.Hour)
		c.store(t.Context(), "seasons", "v2", time.Hour)

		found := c.lookupOrClaim(t.Context(), "seasons")
		require.Equal(t, lookupHit, found.state)
		require.Equal(t, "v2", found.data)
		require.Equal(t, 1, c.Len())
	})

	t.Run("expired entries are claimed", func(t *testing.T) {
		t.Parallel()
		c := newCache(t)

		c.store(t.Context(), "seasons", "v", 10*time.Millisecond)
		time.Sleep(50 * time.Millisecond)

		require.Equal(t, lookupClaimed, c.lookupOrClaim(t.Context(), "seasons").state)
	})

	t.Run("second lookup of a claim is pending", func(t *testing.T) {
		t.Parallel()
		c := newCache(t)

		require.Equal(t, lookupClaimed, c.lookupOrClaim(t.Context(), "seasons").state)
		require.Equal(t, lookupPending, c.lookupOrClaim(t.Context(), "seasons").state)
	})

	t.Run("release", func(t *testing.T) {
		t.Parallel()
		c := newCache(t)

		// Missing entries are fine
		c.release(t.Context(), "seasons")

		require.Equal(t, lookupClaimed, c.lookupOrClaim(t.Context(), "seasons").state)
		c.release(t.Context(), "seasons")
		require.Equal(t, lookupClaimed, c.lookupOrClaim(t.Context(), "seasons").state)

		// Stored entries are kept
		c.store(t.Context(), "seasons", "v", time.Hour)
		c.release(t.Context(), "seasons")
		require.Equal(t, lookupHit, c.lookupOrClaim(t.Context(), "seasons").state)
	})

	t.Run("backoff respects context", func(t *testing.T) {
		t.Parallel()
		c := newCache(t)

		require.NoError(t, c.backoff(t.Context()))

		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		require.ErrorIs(t, c.backoff(ctx), context.Canceled)
	})
}
