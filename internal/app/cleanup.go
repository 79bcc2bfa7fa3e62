package app

import (
	"context"
	"fmt"
	"time"

	"github.com/pochinki/pochinki/internal/logging"
)

const CallLogRetention = 7 * 24 * time.Hour

type Cleanup func(ctx context.Context) error

type callLogPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type expiredPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// BuildCleanup deletes call log records past the retention and expired cache rows.
// cachePurger may be nil for backends that expire entries on their own.
func BuildCleanup(callLog callLogPruner, cachePurger expiredPurger, nowFunc func() time.Time) Cleanup {
	return func(ctx context.Context) error {
		logger := logging.FromContext(ctx)

		deleted, err := callLog.DeleteOlderThan(ctx, nowFunc().Add(-CallLogRetention))
		if err != nil {
			return fmt.Errorf("failed to delete old call log records: %w", err)
		}
		logger.InfoContext(ctx, "deleted old call log records", "count", deleted)

		if cachePurger == nil {
			return nil
		}

		purged, err := cachePurger.PurgeExpired(ctx)
		if err != nil {
			return fmt.Errorf("failed to purge expired cache entries: %w", err)
		}
		logger.InfoContext(ctx, "purged expired cache entries", "count", purged)

		return nil
	}
}
