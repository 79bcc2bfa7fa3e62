package statsrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/pochinki/pochinki/internal/domain"
	"github.com/pochinki/pochinki/internal/reporting"
)

type Postgres struct {
	db     *sqlx.DB
	schema string

	tracer trace.Tracer
}

func NewPostgres(db *sqlx.DB, schema string) *Postgres {
	tracer := otel.Tracer("pochinki/statsrepository/postgres")

	return &Postgres{
		db:     db,
		schema: schema,

		tracer: tracer,
	}
}

const statsColumns = `s.player_id, s.season_id, s.game_mode, s.stats_type,
	s.matches_played, s.wins, s.top10s, s.kills, s.deaths, s.damage_dealt, s.headshot_kills,
	s.longest_kill, s.road_kills, s.vehicle_destroys, s.assists, s.knockdowns, s.revives,
	s.heals, s.boosts, s.time_survived, s.walk_distance, s.ride_distance, s.swim_distance,
	s.kd_ratio, s.win_rate, s.top10_rate, s.avg_damage, s.headshot_rate,
	s.combat_base, s.survival_base, s.support_base, s.consistency_base,
	s.combat_score, s.survival_score, s.support_score, s.consistency_score,
	s.pubg_rating, s.confidence_factor, s.updated_at`

type dbPlayerStats struct {
	PlayerID  int64  `db:"player_id"`
	SeasonID  string `db:"season_id"`
	GameMode  string `db:"game_mode"`
	StatsType string `db:"stats_type"`

	MatchesPlayed   int     `db:"matches_played"`
	Wins            int     `db:"wins"`
	Top10s          int     `db:"top10s"`
	Kills           int     `db:"kills"`
	Deaths          int     `db:"deaths"`
	DamageDealt     float64 `db:"damage_dealt"`
	HeadshotKills   int     `db:"headshot_kills"`
	LongestKill     float64 `db:"longest_kill"`
	RoadKills       int     `db:"road_kills"`
	VehicleDestroys int     `db:"vehicle_destroys"`
	Assists         int     `db:"assists"`
	Knockdowns      int     `db:"knockdowns"`
	Revives         int     `db:"revives"`
	Heals           int     `db:"heals"`
	Boosts          int     `db:"boosts"`
	TimeSurvived    float64 `db:"time_survived"`
	WalkDistance    float64 `db:"walk_distance"`
	RideDistance    float64 `db:"ride_distance"`
	SwimDistance    float64 `db:"swim_distance"`

	KDRatio      float64 `db:"kd_ratio"`
	WinRate      float64 `db:"win_rate"`
	Top10Rate    float64 `db:"top10_rate"`
	AvgDamage    float64 `db:"avg_damage"`
	HeadshotRate float64 `db:"headshot_rate"`

	CombatBase       float64 `db:"combat_base"`
	SurvivalBase     float64 `db:"survival_base"`
	SupportBase      float64 `db:"support_base"`
	ConsistencyBase  float64 `db:"consistency_base"`
	CombatScore      float64 `db:"combat_score"`
	SurvivalScore    float64 `db:"survival_score"`
	SupportScore     float64 `db:"support_score"`
	ConsistencyScore float64 `db:"consistency_score"`
	PubgRating       float64 `db:"pubg_rating"`
	ConfidenceFactor float64 `db:"confidence_factor"`

	UpdatedAt time.Time `db:"updated_at"`
}

func (d dbPlayerStats) toDomain() domain.PlayerStats {
	statsType := domain.StatsType(d.StatsType)
	gameMode := domain.GameMode(d.GameMode)

	component := func(base, scaled, weight float64) domain.RatingComponent {
		return domain.RatingComponent{
			Base:         base,
			Scaled:       scaled,
			Weight:       weight,
			Contribution: domain.Round2(scaled * weight),
		}
	}

	return domain.PlayerStats{
		Key: domain.StatsKey{
			PlayerDBID: d.PlayerID,
			Season:     d.SeasonID,
			GameMode:   gameMode,
			StatsType:  statsType,
		},
		Snapshot: domain.StatSnapshot{
			Matches:         d.MatchesPlayed,
			Wins:            d.Wins,
			Top10s:          d.Top10s,
			Kills:           d.Kills,
			Deaths:          d.Deaths,
			DamageDealt:     d.DamageDealt,
			HeadshotKills:   d.HeadshotKills,
			LongestKill:     d.LongestKill,
			RoadKills:       d.RoadKills,
			VehicleDestroys: d.VehicleDestroys,
			Assists:         d.Assists,
			Knockdowns:      d.Knockdowns,
			Revives:         d.Revives,
			Heals:           d.Heals,
			Boosts:          d.Boosts,
			TimeSurvived:    d.TimeSurvived,
			WalkDistance:    d.WalkDistance,
			RideDistance:    d.RideDistance,
			SwimDistance:    d.SwimDistance,
			StatsType:       statsType,
			GameMode:        gameMode,
		},
		Metrics: domain.DerivedMetrics{
			KDRatio:      d.KDRatio,
			WinRate:      d.WinRate,
			Top10Rate:    d.Top10Rate,
			HeadshotRate: d.HeadshotRate,
			AvgDamage:    d.AvgDamage,
		},
		Rating: domain.RatingBreakdown{
			Combat:           component(d.CombatBase, d.CombatScore, domain.WeightCombat),
			Survival:         component(d.SurvivalBase, d.SurvivalScore, domain.WeightSurvival),
			Support:          component(d.SupportBase, d.SupportScore, domain.WeightSupport),
			Consistency:      component(d.ConsistencyBase, d.ConsistencyScore, domain.WeightConsistency),
			PubgRating:       d.PubgRating,
			ConfidenceFactor: d.ConfidenceFactor,
		},
		LastUpdated: d.UpdatedAt,
	}
}

func (p *Postgres) StoreStats(ctx context.Context, stats domain.PlayerStats) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.StoreStats")
	defer span.End()

	if !stats.Key.StatsType.IsValid() || !stats.Key.GameMode.IsValid() || stats.Key.Season == "" {
		err := fmt.Errorf("%w: invalid stats key", domain.ErrInvalidInput)
		reporting.Report(ctx, err, keyExtras(stats.Key))
		return err
	}

	s := stats.Snapshot
	rating := stats.Rating.Rounded()
	metrics := stats.Metrics

	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s.player_stats
		(
			player_id, season_id, game_mode, stats_type,
			matches_played, wins, top10s, kills, deaths, damage_dealt, headshot_kills,
			longest_kill, road_kills, vehicle_destroys, assists, knockdowns, revives,
			heals, boosts, time_survived, walk_distance, ride_distance, swim_distance,
			kd_ratio, win_rate, top10_rate, avg_damage, headshot_rate,
			combat_base, survival_base, support_base, consistency_base,
			combat_score, survival_score, support_score, consistency_score,
			pubg_rating, confidence_factor, updated_at
		)
		VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23,
			$24, $25, $26, $27, $28,
			$29, $30, $31, $32,
			$33, $34, $35, $36,
			$37, $38, $39
		)
		ON CONFLICT (player_id, season_id, game_mode, stats_type)
		DO UPDATE SET
			matches_played = EXCLUDED.matches_played,
			wins = EXCLUDED.wins,
			top10s = EXCLUDED.top10s,
			kills = EXCLUDED.kills,
			deaths = EXCLUDED.deaths,
			damage_dealt = EXCLUDED.damage_dealt,
			headshot_kills = EXCLUDED.headshot_kills,
			longest_kill = EXCLUDED.longest_kill,
			road_kills = EXCLUDED.road_kills,
			vehicle_destroys = EXCLUDED.vehicle_destroys,
			assists = EXCLUDED.assists,
			knockdowns = EXCLUDED.knockdowns,
			revives = EXCLUDED.revives,
			heals = EXCLUDED.heals,
			boosts = EXCLUDED.boosts,
			time_survived = EXCLUDED.time_survived,
			walk_distance = EXCLUDED.walk_distance,
			ride_distance = EXCLUDED.ride_distance,
			swim_distance = EXCLUDED.swim_distance,
			kd_ratio = EXCLUDED.kd_ratio,
			win_rate = EXCLUDED.win_rate,
			top10_rate = EXCLUDED.top10_rate,
			avg_damage = EXCLUDED.avg_damage,
			headshot_rate = EXCLUDED.headshot_rate,
			combat_base = EXCLUDED.combat_base,
			survival_base = EXCLUDED.survival_base,
			support_base = EXCLUDED.support_base,
			consistency_base = EXCLUDED.consistency_base,
			combat_score = EXCLUDED.combat_score,
			survival_score = EXCLUDED.survival_score,
			support_score = EXCLUDED.support_score,
			consistency_score = EXCLUDED.consistency_score,
			pubg_rating = EXCLUDED.pubg_rating,
			confidence_factor = EXCLUDED.confidence_factor,
			updated_at = EXCLUDED.updated_at`,
		pq.QuoteIdentifier(p.schema),
	),
		stats.Key.PlayerDBID, stats.Key.Season, string(stats.Key.GameMode), string(stats.Key.StatsType),
		s.Matches, s.Wins, s.Top10s, s.Kills, s.Deaths, s.DamageDealt, s.HeadshotKills,
		s.LongestKill, s.RoadKills, s.VehicleDestroys, s.Assists, s.Knockdowns, s.Revives,
		s.Heals, s.Boosts, s.TimeSurvived, s.WalkDistance, s.RideDistance, s.SwimDistance,
		domain.Round2(metrics.KDRatio), domain.Round2(metrics.WinRate), domain.Round2(metrics.Top10Rate), domain.Round2(metrics.AvgDamage), domain.Round2(metrics.HeadshotRate),
		rating.Combat.Base, rating.Survival.Base, rating.Support.Base, rating.Consistency.Base,
		rating.Combat.Scaled, rating.Survival.Scaled, rating.Support.Scaled, rating.Consistency.Scaled,
		rating.PubgRating, rating.ConfidenceFactor, stats.LastUpdated,
	)
	if err != nil {
		err := fmt.Errorf("%w: failed to upsert player stats: %w", domain.ErrPersistence, err)
		reporting.Report(ctx, err, keyExtras(stats.Key))
		return err
	}

	return nil
}

func (p *Postgres) GetLatestStats(ctx context.Context, key domain.StatsKey) (domain.PlayerStats, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.GetLatestStats")
	defer span.End()

	var row dbPlayerStats
	err := p.db.GetContext(ctx, &row, fmt.Sprintf(`SELECT %s
		FROM %s.player_stats s
		WHERE s.player_id = $1 AND s.season_id = $2 AND s.game_mode = $3 AND s.stats_type = $4`,
		statsColumns,
		pq.QuoteIdentifier(p.schema),
	),
		key.PlayerDBID,
		key.Season,
		string(key.GameMode),
		string(key.StatsType),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PlayerStats{}, domain.ErrStatsNotFound
	}
	if err != nil {
		err := fmt.Errorf("%w: failed to select player stats: %w", domain.ErrPersistence, err)
		reporting.Report(ctx, err, keyExtras(key))
		return domain.PlayerStats{}, err
	}

	return row.toDomain(), nil
}

func (p *Postgres) ListStats(ctx context.Context, playerDBID int64) ([]domain.PlayerStats, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.ListStats")
	defer span.End()

	var rows []dbPlayerStats
	err := p.db.SelectContext(ctx, &rows, fmt.Sprintf(`SELECT %s
		FROM %s.player_stats s
		WHERE s.player_id = $1
		ORDER BY s.updated_at DESC, s.id DESC`,
		statsColumns,
		pq.QuoteIdentifier(p.schema),
	),
		playerDBID,
	)
	if err != nil {
		err := fmt.Errorf("%w: failed to select player stats: %w", domain.ErrPersistence, err)
		reporting.Report(ctx, err, map[string]string{
			"playerDBID": strconv.FormatInt(playerDBID, 10),
		})
		return nil, err
	}

	stats := make([]domain.PlayerStats, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, row.toDomain())
	}
	return stats, nil
}

// Only these expressions are ever interpolated into the ORDER BY clause
var sortColumns = map[domain.LeaderboardSort]string{
	domain.SortPubgRating:    "s.pubg_rating",
	domain.SortCombatScore:   "s.combat_score",
	domain.SortSurvivalScore: "s.survival_score",
	domain.SortSupportScore:  "s.support_score",
	domain.SortKDRatio:       "s.kd_ratio",
	domain.SortWins:          "s.wins",
	domain.SortKills:         "s.kills",
}

type dbLeaderboardRow struct {
	PlayerDBID      int64     `db:"p_id"`
	PubgID          string    `db:"p_pubg_id"`
	Name            string    `db:"p_name"`
	Platform        string    `db:"p_platform"`
	Shard           string    `db:"p_shard"`
	Active          bool      `db:"p_active"`
	PlayerCreatedAt time.Time `db:"p_created_at"`
	PlayerUpdatedAt time.Time `db:"p_updated_at"`

	dbPlayerStats
}

func (p *Postgres) GetLeaderboard(ctx context.Context, query domain.LeaderboardQuery) ([]domain.LeaderboardEntry, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.GetLeaderboard")
	defer span.End()

	sortColumn, ok := sortColumns[query.Sort]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidLeaderboardSort, query.Sort)
	}

	if query.Season == "" {
		err := fmt.Errorf("%w: leaderboard season is empty", domain.ErrInvalidInput)
		reporting.Report(ctx, err)
		return nil, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = domain.DefaultLeaderboardLimit
	}
	limit = min(limit, domain.MaxLeaderboardLimit)

	var rows []dbLeaderboardRow
	err := p.db.SelectContext(ctx, &rows, fmt.Sprintf(`SELECT
		p.id AS p_id, p.pubg_id AS p_pubg_id, p.name AS p_name, p.platform AS p_platform,
		p.shard AS p_shard, p.active AS p_active, p.created_at AS p_created_at, p.updated_at AS p_updated_at,
		%s
		FROM %s.player_stats s
		JOIN %s.players p ON p.id = s.player_id
		WHERE p.active
			AND s.season_id = $1
			AND s.game_mode = $2
			AND s.stats_type = $3
			AND s.matches_played >= $4
		ORDER BY %s DESC, p.name ASC
		LIMIT $5`,
		statsColumns,
		pq.QuoteIdentifier(p.schema),
		pq.QuoteIdentifier(p.schema),
		sortColumn,
	),
		query.Season,
		string(query.GameMode),
		string(query.StatsType),
		query.MinConfidence.MinMatches(),
		limit,
	)
	if err != nil {
		err := fmt.Errorf("%w: failed to select leaderboard: %w", domain.ErrPersistence, err)
		reporting.Report(ctx, err, map[string]string{
			"season":   query.Season,
			"gameMode": string(query.GameMode),
			"sort":     string(query.Sort),
		})
		return nil, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, domain.LeaderboardEntry{
			Rank: i + 1,
			Player: domain.Player{
				DBID: row.PlayerDBID,
				PlayerIdentity: domain.PlayerIdentity{
					ID:       row.PubgID,
					Name:     row.Name,
					Platform: row.Platform,
					Shard:    row.Shard,
				},
				Active:    row.Active,
				CreatedAt: row.PlayerCreatedAt,
				UpdatedAt: row.PlayerUpdatedAt,
			},
			Stats: row.dbPlayerStats.toDomain(),
		})
	}
	return entries, nil
}

func (p *Postgres) LastUpdated(ctx context.Context) (time.Time, bool, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.LastUpdated")
	defer span.End()

	var lastUpdated sql.NullTime
	err := p.db.GetContext(ctx, &lastUpdated, fmt.Sprintf(`SELECT MAX(updated_at) FROM %s.player_stats`,
		pq.QuoteIdentifier(p.schema),
	))
	if err != nil {
		err := fmt.Errorf("%w: failed to select last update: %w", domain.ErrPersistence, err)
		reporting.Report(ctx, err)
		return time.Time{}, false, err
	}

	return lastUpdated.Time, lastUpdated.Valid, nil
}

func (p *Postgres) StoreWeaponMastery(ctx context.Context, playerDBID int64, weapons []domain.WeaponMastery, updatedAt time.Time) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.StoreWeaponMastery")
	defer span.End()

	if len(weapons) == 0 {
		return nil
	}

	txx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		err := fmt.Errorf("%w: failed to start transaction: %w", domain.ErrPersistence, err)
		reporting.Report(ctx, err)
		return err
	}
	defer txx.Rollback()

	for _, weapon := range weapons {
		_, err := txx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s.weapon_mastery
			(player_id, weapon_name, weapon_category, xp_total, level, kills, damage, headshots, defeats, longest_defeat, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (player_id, weapon_name)
			DO UPDATE SET
				weapon_category = EXCLUDED.weapon_category,
				xp_total = EXCLUDED.xp_total,
				level = EXCLUDED.level,
				kills = EXCLUDED.kills,
				damage = EXCLUDED.damage,
				headshots = EXCLUDED.headshots,
				defeats = EXCLUDED.defeats,
				longest_defeat = EXCLUDED.longest_defeat,
				updated_at = EXCLUDED.updated_at`,
			pq.QuoteIdentifier(p.schema),
		),
			playerDBID,
			weapon.Name,
			weapon.Category,
			weapon.XP,
			weapon.Level,
			weapon.Kills,
			weapon.Damage,
			weapon.Headshots,
			weapon.Defeats,
			weapon.LongestDefeat,
			updatedAt,
		)
		if err != nil {
			err := fmt.Errorf("%w: failed to upsert weapon mastery: %w", domain.ErrPersistence, err)
			reporting.Report(ctx, err, map[string]string{
				"playerDBID": strconv.FormatInt(playerDBID, 10),
				"weapon":     weapon.Name,
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

type dbWeaponMastery struct {
	WeaponName     string    `db:"weapon_name"`
	WeaponCategory string    `db:"weapon_category"`
	XPTotal        int       `db:"xp_total"`
	Level          int       `db:"level"`
	Kills          int       `db:"kills"`
	Damage         float64   `db:"damage"`
	Headshots      int       `db:"headshots"`
	Defeats        int       `db:"defeats"`
	LongestDefeat  float64   `db:"longest_defeat"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (p *Postgres) GetWeaponMastery(ctx context.Context, playerDBID int64) ([]domain.WeaponMastery, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.GetWeaponMastery")
	defer span.End()

	var rows []dbWeaponMastery
	err := p.db.SelectContext(ctx, &rows, fmt.Sprintf(`SELECT
		weapon_name, weapon_category, xp_total, level, kills, damage, headshots, defeats, longest_defeat, updated_at
		FROM %s.weapon_mastery
		WHERE player_id = $1
		ORDER BY xp_total DESC, weapon_name ASC`,
		pq.QuoteIdentifier(p.schema),
	),
		playerDBID,
	)
	if err != nil {
		err := fmt.Errorf("%w: failed to select weapon mastery: %w", domain.ErrPersistence, err)
		reporting.Report(ctx, err, map[string]string{
			"playerDBID": strconv.FormatInt(playerDBID, 10),
		})
		return nil, err
	}

	weapons := make([]domain.WeaponMastery, 0, len(rows))
	for _, row := range rows {
		weapons = append(weapons, domain.WeaponMastery{
			Name:          row.WeaponName,
			Category:      row.WeaponCategory,
			XP:            row.XPTotal,
			Level:         row.Level,
			Kills:         row.Kills,
			Damage:        row.Damage,
			Headshots:     row.Headshots,
			Defeats:       row.Defeats,
			LongestDefeat: row.LongestDefeat,
			LastUpdated:   row.UpdatedAt,
		})
	}
	return weapons, nil
}

func keyExtras(key domain.StatsKey) map[string]string {
	return map[string]string{
		"playerDBID": strconv.FormatInt(key.PlayerDBID, 10),
		"season":     key.Season,
		"gameMode":   string(key.GameMode),
		"statsType":  string(key.StatsType),
	}
}
