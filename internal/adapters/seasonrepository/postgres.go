package seasonrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/pochinki/pochinki/internal/domain"
	"github.com/pochinki/pochinki/internal/reporting"
)

type Postgres struct {
	db      *sqlx.DB
	schema  string
	nowFunc func() time.Time

	tracer trace.Tracer
}

func NewPostgres(db *sqlx.DB, schema string, nowFunc func() time.Time) *Postgres {
	tracer := otel.Tracer("pochinki/seasonrepository/postgres")

	return &Postgres{
		db:      db,
		schema:  schema,
		nowFunc: nowFunc,

		tracer: tracer,
	}
}

type dbSeason struct {
	ID          string `db:"id"`
	IsCurrent   bool   `db:"is_current"`
	IsOffseason bool   `db:"is_offseason"`
}

func (p *Postgres) StoreSeasons(ctx context.Context, seasons []domain.Season) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.StoreSeasons")
	defer span.End()

	now := p.nowFunc()

	txx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		err := fmt.Errorf("%w: failed to start transaction: %w", domain.ErrPersistence, err)
		reporting.Report(ctx, err)
		return err
	}
	defer txx.Rollback()

	// Seasons missing from the list keep their row but lose their flags
	_, err = txx.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s.seasons SET is_current = FALSE, is_offseason = FALSE, updated_at = $1`,
		pq.QuoteIdentifier(p.schema),
	), now)
	if err != nil {
		err := fmt.Errorf("%w: failed to reset season flags: %w", domain.ErrPersistence, err)
		reporting.Report(ctx, err)
		return err
	}

	for _, season := range seasons {
		_, err := txx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s.seasons
			(id, is_current, is_offseason, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id)
			DO UPDATE SET
				is_current = EXCLUDED.is_current,
				is_offseason = EXCLUDED.is_offseason,
				updated_at = EXCLUDED.updated_at`,
			pq.QuoteIdentifier(p.schema),
		),
			season.ID,
			season.IsCurrent,
			season.IsOffseason,
			now,
		)
		if err != nil {
			err := fmt.Errorf("%w: failed to upsert season: %w", domain.ErrPersistence, err)
			reporting.Report(ctx, err, map[string]string{
				"season": season.ID,
			})
			return err
		}
	}

	err = txx.Commit()
	if err != nil {
		err := fmt.Errorf("%w: failed to commit transaction: %w", domain.ErrPersistence, err)
		reporting.Report(ctx, err)
		return err
	}

	return nil
}

func (p *Postgres) GetSeasons(ctx context.Context) ([]domain.Season, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.GetSeasons")
	defer span.End()

	var rows []dbSeason
	err := p.db.SelectContext(ctx, &rows, fmt.Sprintf(
		`SELECT id, is_current, is_offseason FROM %s.seasons ORDER BY id ASC`,
		pq.QuoteIdentifier(p.schema),
	))
	if err != nil {
		err := fmt.Errorf("%w: failed to select seasons: %w", domain.ErrPersistence, err)
		reporting.Report(ctx, err)
		return nil, err
	}

	seasons := make([]domain.Season, 0, len(rows))
	for _, row := range rows {
		seasons = append(seasons, domain.Season(row))
	}
	return seasons, nil
}

func (p *Postgres) GetCurrentSeason(ctx context.Context) (domain.Season, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.GetCurrentSeason")
	defer span.End()

	var row dbSeason
	err := p.db.GetContext(ctx, &row, fmt.Sprintf(
		`SELECT id, is_current, is_offseason FROM %s.seasons WHERE is_current ORDER BY updated_at DESC, id DESC LIMIT 1`,
		pq.QuoteIdentifier(p.schema),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Season{}, domain.ErrNoCurrentSeason
	}
	if err != nil {
		err := fmt.Errorf("%w: failed to select current season: %w", domain.ErrPersistence, err)
		reporting.Report(ctx, err)
		return domain.Season{}, err
	}

	return domain.Season(row), nil
}
