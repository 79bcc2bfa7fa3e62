package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/pochinki/pochinki/internal/reporting"
)

// postgresCache stores entries in the cache table so that every process sharing the
// database sees the same entries. Expired rows are ignored on read and purged by PurgeExpired.
type postgresCache[T any] struct {
	db      *sqlx.DB
	schema  string
	tracer  trace.Tracer
	nowFunc func() time.Time
}

func NewPostgres[T any](db *sqlx.DB, schema string, nowFunc func() time.Time) *postgresCache[T] {
	return &postgresCache[T]{
		db:      db,
		schema:  schema,
		tracer:  otel.Tracer("pochinki/cache/postgres"),
		nowFunc: nowFunc,
	}
}

func (c *postgresCache[T]) lookupOrClaim(ctx context.Context, key string) lookup[T] {
	ctx, span := c.tracer.Start(ctx, "PostgresCache.get")
	defer span.End()

	miss := lookup[T]{state: lookupClaimed}

	var value []byte
	err := c.db.GetContext(ctx, &value, fmt.Sprintf(`SELECT value
		FROM %s.cache
		WHERE key = $1 AND expires_at > $2`,
		pq.QuoteIdentifier(c.schema),
	),
		key,
		c.nowFunc(),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return miss
	}
	if err != nil {
		err := fmt.Errorf("failed to read cache entry: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"key": key,
		})
		return miss
	}

	var data T
	err = json.Unmarshal(value, &data)
	if err != nil {
		err := fmt.Errorf("failed to unmarshal cache entry: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"key": key,
		})
		return miss
	}

	return lookup[T]{data: data, state: lookupHit}
}

func (c *postgresCache[T]) store(ctx context.Context, key string, data T, ttl time.Duration) {
	ctx, span := c.tracer.Start(ctx, "PostgresCache.store")
	defer span.End()

	value, err := json.Marshal(data)
	if err != nil {
		err := fmt.Errorf("failed to marshal cache entry: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"key": key,
		})
		return
	}

	expiresAt := c.nowFunc().Add(ttl)

	_, err = c.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s.cache
		(key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key)
		DO UPDATE SET
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at`,
		pq.QuoteIdentifier(c.schema),
	),
		key,
		string(value),
		expiresAt,
	)
	if err != nil {
		err := fmt.Errorf("failed to write cache entry: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"key":       key,
			"expiresAt": expiresAt.Format(time.RFC3339),
		})
	}
}

// Nothing is written on claim, so there is nothing to release
func (c *postgresCache[T]) release(ctx context.Context, key string) {
}

// Never called, misses are always claimed
func (c *postgresCache[T]) backoff(ctx context.Context) error {
	return ctx.Err()
}

// PurgeExpired removes expired rows and returns how many were removed
func (c *postgresCache[T]) PurgeExpired(ctx context.Context) (int64, error) {
	ctx, span := c.tracer.Start(ctx, "PostgresCache.PurgeExpired")
	defer span.End()

	result, err := c.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s.cache WHERE expires_at <= $1`,
		pq.QuoteIdentifier(c.schema),
	),
		c.nowFunc(),
	)
	if err != nil {
		err := fmt.Errorf("failed to purge expired cache entries: %w", err)
		reporting.Report(ctx, err)
		return 0, err
	}

	removed, err := result.RowsAffected()
	if err != nil {
		err := fmt.Errorf("failed to count purged cache entries: %w", err)
		reporting.Report(ctx, err)
		return 0, err
	}

	return removed, nil
}
