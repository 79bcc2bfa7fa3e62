package calllog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/pochinki/pochinki/internal/domain"
	"github.com/pochinki/pochinki/internal/reporting"
)

// Postgres shares the admission window between every process using the same schema
type Postgres struct {
	db      *sqlx.DB
	schema  string
	limit   int
	window  time.Duration
	nowFunc func() time.Time

	tracer trace.Tracer
}

func NewPostgres(db *sqlx.DB, schema string, limit int, window time.Duration, nowFunc func() time.Time) *Postgres {
	return &Postgres{
		db:      db,
		schema:  schema,
		limit:   limit,
		window:  window,
		nowFunc: nowFunc,

		tracer: otel.Tracer("pochinki/calllog/postgres"),
	}
}

func (p *Postgres) Reserve(ctx context.Context, endpoint, method string) (Reservation, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.Reserve")
	defer span.End()

	txx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		err := fmt.Errorf("failed to start transaction: %w", err)
		reporting.Report(ctx, err)
		return Reservation{}, err
	}
	defer txx.Rollback()

	// Serialize admission decisions across processes. Released on commit/rollback.
	_, err = txx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", "api_calls:"+p.schema)
	if err != nil {
		err := fmt.Errorf("failed to acquire admission lock: %w", err)
		reporting.Report(ctx, err)
		return Reservation{}, err
	}

	now := p.nowFunc()

	var used int
	err = txx.GetContext(ctx, &used, fmt.Sprintf(`SELECT COUNT(*)
		FROM %s.api_calls
		WHERE created_at >= $1`,
		pq.QuoteIdentifier(p.schema),
	),
		now.Add(-p.window),
	)
	if err != nil {
		err := fmt.Errorf("failed to count calls in window: %w", err)
		reporting.Report(ctx, err)
		return Reservation{}, err
	}

	if used >= p.limit {
		return Reservation{}, domain.ErrRateLimitExceeded
	}

	var id int64
	err = txx.GetContext(ctx, &id, fmt.Sprintf(`INSERT INTO %s.api_calls
		(endpoint, method, created_at)
		VALUES ($1, $2, $3)
		RETURNING id`,
		pq.QuoteIdentifier(p.schema),
	),
		endpoint,
		method,
		now,
	)
	if err != nil {
		err := fmt.Errorf("failed to insert call reservation: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"endpoint": endpoint,
		})
		return Reservation{}, err
	}

	err = txx.Commit()
	if err != nil {
		err := fmt.Errorf("failed to commit transaction: %w", err)
		reporting.Report(ctx, err)
		return Reservation{}, err
	}

	return Reservation{
		ID:         id,
		Endpoint:   endpoint,
		Method:     method,
		ReservedAt: now,
	}, nil
}

func (p *Postgres) Complete(ctx context.Context, reservation Reservation, outcome Outcome) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.Complete")
	defer span.End()

	statusCode := sql.NullInt64{Int64: int64(outcome.StatusCode), Valid: outcome.StatusCode != 0}
	errorMessage := sql.NullString{String: outcome.ErrorMessage, Valid: outcome.ErrorMessage != ""}

	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s.api_calls
		SET
			status_code = $1,
			latency_ms = $2,
			error_message = $3
		WHERE id = $4`,
		pq.QuoteIdentifier(p.schema),
	),
		statusCode,
		outcome.Latency.Milliseconds(),
		errorMessage,
		reservation.ID,
	)
	if err != nil {
		err := fmt.Errorf("failed to complete call record: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"endpoint": reservation.Endpoint,
		})
		return err
	}

	return nil
}

func (p *Postgres) Usage(ctx context.Context) (domain.CallUsage, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.Usage")
	defer span.End()

	var used int
	err := p.db.GetContext(ctx, &used, fmt.Sprintf(`SELECT COUNT(*)
		FROM %s.api_calls
		WHERE created_at >= $1`,
		pq.QuoteIdentifier(p.schema),
	),
		p.nowFunc().Add(-p.window),
	)
	if err != nil {
		err := fmt.Errorf("failed to count calls in window: %w", err)
		reporting.Report(ctx, err)
		return domain.CallUsage{}, err
	}

	return domain.NewCallUsage(used, p.limit, p.window), nil
}

func (p *Postgres) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.DeleteOlderThan")
	defer span.End()

	result, err := p.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s.api_calls WHERE created_at < $1`,
		pq.QuoteIdentifier(p.schema),
	),
		cutoff,
	)
	if err != nil {
		err := fmt.Errorf("failed to delete old call records: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"cutoff": cutoff.Format(time.RFC3339),
		})
		return 0, err
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		err := fmt.Errorf("failed to count deleted call records: %w", err)
		reporting.Report(ctx, err)
		return 0, err
	}

	return deleted, nil
}

// Calls returns the recorded calls, oldest first
func (p *Postgres) Calls(ctx context.Context) ([]domain.APICall, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.Calls")
	defer span.End()

	var rows []dbAPICall
	err := p.db.SelectContext(ctx, &rows, fmt.Sprintf(`SELECT
		endpoint, method, status_code, latency_ms, error_message, created_at
		FROM %s.api_calls
		ORDER BY created_at ASC, id ASC`,
		pq.QuoteIdentifier(p.schema),
	))
	if err != nil {
		err := fmt.Errorf("failed to select call records: %w", err)
		reporting.Report(ctx, err)
		return nil, err
	}

	calls := make([]domain.APICall, 0, len(rows))
	for _, row := range rows {
		calls = append(calls, domain.APICall{
			Endpoint:     row.Endpoint,
			Method:       row.Method,
			StatusCode:   int(row.StatusCode.Int64),
			Latency:      time.Duration(row.LatencyMS.Int64) * time.Millisecond,
			ErrorMessage: row.ErrorMessage.String,
			CalledAt:     row.CreatedAt,
		})
	}
	return calls, nil
}

type dbAPICall struct {
	Endpoint     string         `db:"endpoint"`
	Method       string         `db:"method"`
	StatusCode   sql.NullInt64  `db:"status_code"`
	LatencyMS    sql.NullInt64  `db:"latency_ms"`
	ErrorMessage sql.NullString `db:"error_message"`
	CreatedAt    time.Time      `db:"created_at"`
}
