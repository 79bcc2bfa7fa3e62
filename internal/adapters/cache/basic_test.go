package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBasicCache(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)

	t.Run("entry is available until it expires", func(t *testing.T) {
		t.Parallel()

		now := start
		c := NewBasicCache[string](func() time.Time { return now })

		c.store(t.Context(), "k", "v", time.Minute)

		now = start.Add(59 * time.Second)
		found := c.lookupOrClaim(t.Context(), "k")
		require.Equal(t, lookupHit, found.state)
		require.Equal(t, "v", found.data)

		now = start.Add(time.Minute)
		require.Equal(t, lookupClaimed, c.lookupOrClaim(t.Context(), "k").state)
	})

	t.Run("second store replaces value and expiry", func(t *testing.T) {
		t.Parallel()

		now := start
		c := NewBasicCache[string](func() time.Time { return now })

		c.store(t.Context(), "k", "v1", time.Hour)
		c.store(t.Context(), "k", "v2", time.Second)

		require.Equal(t, "v2", c.lookupOrClaim(t.Context(), "k").data)

		now = start.Add(2 * time.Second)
		require.Equal(t, lookupClaimed, c.lookupOrClaim(t.Context(), "k").state)
	})

	t.Run("claims", func(t *testing.T) {
		t.Parallel()

		now := start
		c := NewBasicCache[string](func() time.Time { return now })

		require.Equal(t, lookupClaimed, c.lookupOrClaim(t.Context(), "k").state)
		require.Equal(t, lookupPending, c.lookupOrClaim(t.Context(), "k").state)

		// Abandoned claims expire
		now = start.Add(2 * time.Minute)
		require.Equal(t, lookupClaimed, c.lookupOrClaim(t.Context(), "k").state)

		c.release(t.Context(), "k")
		require.Equal(t, lookupClaimed, c.lookupOrClaim(t.Context(), "k").state)
	})

	t.Run("release keeps stored entries", func(t *testing.T) {
		t.Parallel()

		c := NewBasicCache[string](func() time.Time { return start })

		c.store(t.Context(), "k", "v", time.Hour)
		c.release(t.Context(), "k")

		require.Equal(t, lookupHit, c.lookupOrClaim(t.Context(), "k").state)
	})
}
