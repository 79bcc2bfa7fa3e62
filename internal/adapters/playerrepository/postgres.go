package playerrepository

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
	tracer := otel.Tracer("pochinki/playerrepository/postgres")

	return &Postgres{
		db:      db,
		schema:  schema,
		nowFunc: nowFunc,

		tracer: tracer,
	}
}

type dbPlayer struct {
	ID        int64     `db:"id"`
	PubgID    string    `db:"pubg_id"`
	Name      string    `db:"name"`
	Platform  string    `db:"platform"`
	Shard     string    `db:"shard"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (d dbPlayer) toDomain() domain.Player {
	return domain.Player{
		DBID: d.ID,
		PlayerIdentity: domain.PlayerIdentity{
			ID:       d.PubgID,
			Name:     d.Name,
			Platform: d.Platform,
			Shard:    d.Shard,
		},
		Active:    d.Active,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func (p *Postgres) AddPlayer(ctx context.Context, identity domain.PlayerIdentity) (domain.Player, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.AddPlayer")
	defer span.End()

	if identity.ID == "" {
		err := fmt.Errorf("%w: player id is empty", domain.ErrInvalidInput)
		reporting.Report(ctx, err, map[string]string{
			"name": identity.Name,
		})
		return domain.Player{}, err
	}

	now := p.nowFunc()

	var row dbPlayer
	err := p.db.GetContext(ctx, &row, fmt.Sprintf(`INSERT INTO %s.players
		(pubg_id, name, platform, shard, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $5)
		ON CONFLICT (pubg_id)
		DO UPDATE SET
			name = EXCLUDED.name,
			platform = EXCLUDED.platform,
			shard = EXCLUDED.shard,
			active = TRUE,
			updated_at = EXCLUDED.updated_at
		RETURNING id, pubg_id, name, platform, shard, active, created_at, updated_at`,
		pq.QuoteIdentifier(p.schema),
	),
		identity.ID,
		identity.Name,
		identity.Platform,
		identity.Shard,
		now,
	)
	if err != nil {
		err := fmt.Errorf("%w: failed to upsert player: %w", domain.ErrPersistence, err)
		reporting.Report(ctx, err, map[string]string{
			"playerID": identity.ID,
			"name":     identity.Name,
		})
		return domain.Player{}, err
	}

	return row.toDomain(), nil
}

func (p *Postgres) GetActivePlayers(ctx context.Context) ([]domain.Player, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.GetActivePlayers")
	defer span.End()

	var rows []dbPlayer
	err := p.db.SelectContext(ctx, &rows, fmt.Sprintf(`SELECT
		id, pubg_id, name, platform, shard, active, created_at, updated_at
		FROM %s.players
		WHERE active
		ORDER BY name ASC, id ASC`,
		pq.QuoteIdentifier(p.schema),
	))
	if err != nil {
		err := fmt.Errorf("%w: failed to select active players: %w", domain.ErrPersistence, err)
		reporting.Report(ctx, err)
		return nil, err
	}

	players := make([]domain.Player, 0, len(rows))
	for _, row := range rows {
		players = append(players, row.toDomain())
	}
	return players, nil
}

func (p *Postgres) GetPlayer(ctx context.Context, playerID string) (domain.Player, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.GetPlayer")
	defer span.End()

	var row dbPlayer
	err := p.db.GetContext(ctx, &row, fmt.Sprintf(`SELECT
		id, pubg_id, name, platform, shard, active, created_at, updated_at
		FROM %s.players
		WHERE pubg_id = $1`,
		pq.QuoteIdentifier(p.schema),
	),
		playerID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	if err != nil {
		err := fmt.Errorf("%w: failed to select player: %w", domain.ErrPersistence, err)
		reporting.Report(ctx, err, map[string]string{
			"playerID": playerID,
		})
		return domain.Player{}, err
	}

	return row.toDomain(), nil
}

func (p *Postgres) SetActive(ctx context.Context, playerID string, active bool) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.SetActive")
	defer span.End()

	result, err := p.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s.players
		SET active = $1, updated_at = $2
		WHERE pubg_id = $3`,
		pq.QuoteIdentifier(p.schema),
	),
		active,
		p.nowFunc(),
		playerID,
	)
	if err != nil {
		err := fmt.Errorf("%w: failed to update player: %w", domain.ErrPersistence, err)
		reporting.Report(ctx, err, map[string]string{
			"playerID": playerID,
		})
		return err
	}

	return requireAffected(ctx, result, playerID)
}

func (p *Postgres) DeletePlayer(ctx context.Context, playerID string) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.DeletePlayer")
	defer span.End()

	result, err := p.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s.players WHERE pubg_id = $1`,
		pq.QuoteIdentifier(p.schema),
	),
		playerID,
	)
	if err != nil {
		err := fmt.Errorf("%w: failed to delete player: %w", domain.ErrPersistence, err)
		reporting.Report(ctx, err, map[string]string{
			"playerID": playerID,
		})
		return err
	}

	return requireAffected(ctx, result, playerID)
}

func requireAffected(ctx context.Context, result sql.Result, playerID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		err := fmt.Errorf("%w: failed to get affected rows: %w", domain.ErrPersistence, err)
		reporting.Report(ctx, err)
		return err
	}
	if affected == 0 {
		return domain.ErrPlayerNotFound
	}
	return nil
}
