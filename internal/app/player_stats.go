package app

import (
	"context"
	"fmt"

	"github.com/pochinki/pochinki/internal/domain"
)

type PlayerStatsQuery struct {
	// Empty selects the current season. Ignored for lifetime stats.
	Season    string
	GameMode  domain.GameMode
	StatsType domain.StatsType
}

type GetPlayerStats func(ctx context.Context, playerID string, query PlayerStatsQuery) (domain.Player, domain.PlayerStats, error)

type playerGetter interface {
	GetPlayer(ctx context.Context, playerID string) (domain.Player, error)
}

type statsReader interface {
	GetLatestStats(ctx context.Context, key domain.StatsKey) (domain.PlayerStats, error)
}

func BuildGetPlayerStats(players playerGetter, seasons currentSeasonGetter, repo statsReader, defaultGameMode domain.GameMode) GetPlayerStats {
	return func(ctx context.Context, playerID string, query PlayerStatsQuery) (domain.Player, domain.PlayerStats, error) {
		if query.StatsType == "" {
			query.StatsType = domain.StatsTypeSeason
		}
		if !query.StatsType.IsValid() {
			return domain.Player{}, domain.PlayerStats{}, fmt.Errorf("%w: stats type %s", domain.ErrInvalidInput, query.StatsType)
		}

		if query.GameMode == "" {
			query.GameMode = defaultGameMode
		}
		if query.StatsType == domain.StatsTypeLifetime {
			query.Season = domain.LifetimeSeasonKey
			query.GameMode = domain.GameModeAll
		}
		if !query.GameMode.IsValid() {
			return domain.Player{}, domain.PlayerStats{}, fmt.Errorf("%w: game mode %s", domain.ErrInvalidInput, query.GameMode)
		}

		player, err := players.GetPlayer(ctx, playerID)
		if err != nil {
			return domain.Player{}, domain.PlayerStats{}, fmt.Errorf("failed to get player: %w", err)
		}

		if query.Season == "" {
			season, err := seasons.GetCurrentSeason(ctx)
			if err != nil {
				return domain.Player{}, domain.PlayerStats{}, fmt.Errorf("failed to resolve current season: %w", err)
			}
			query.Season = season.ID
		}

		stats, err := repo.GetLatestStats(ctx, domain.StatsKey{
			PlayerDBID: player.DBID,
			Season:     query.Season,
			GameMode:   query.GameMode,
			StatsType:  query.StatsType,
		})
		if err != nil {
			return domain.Player{}, domain.PlayerStats{}, fmt.Errorf("failed to get stats: %w", err)
		}

		return player, stats, nil
	}
}

type GetWeaponMastery func(ctx context.Context, playerID string) (domain.Player, []domain.WeaponMastery, error)

type weaponMasteryReader interface {
	GetWeaponMastery(ctx context.Context, playerDBID int64) ([]domain.WeaponMastery, error)
}

func BuildGetWeaponMastery(players playerGetter, repo weaponMasteryReader) GetWeaponMastery {
	return func(ctx context.Context, playerID string) (domain.Player, []domain.WeaponMastery, error) {
		player, err := players.GetPlayer(ctx, playerID)
		if err != nil {
			return domain.Player{}, nil, fmt.Errorf("failed to get player: %w", err)
		}

		weapons, err := repo.GetWeaponMastery(ctx, player.DBID)
		if err != nil {
			return domain.Player{}, nil, fmt.Errorf("failed to get weapon mastery: %w", err)
		}

		return player, weapons, nil
	}
}
