package app

import (
	"context"
	"fmt"

	"github.com/pochinki/pochinki/internal/domain"
)

type GetLeaderboard func(ctx context.Context, query domain.LeaderboardQuery) (domain.LeaderboardQuery, []domain.LeaderboardEntry, error)

type currentSeasonGetter interface {
	GetCurrentSeason(ctx context.Context) (domain.Season, error)
}

type leaderboardReader interface {
	GetLeaderboard(ctx context.Context, query domain.LeaderboardQuery) ([]domain.LeaderboardEntry, error)
}

// BuildGetLeaderboard fills in defaults for the query and returns the resolved query with the ranking
func BuildGetLeaderboard(seasons currentSeasonGetter, repo leaderboardReader, defaultGameMode domain.GameMode) GetLeaderboard {
	return func(ctx context.Context, query domain.LeaderboardQuery) (domain.LeaderboardQuery, []domain.LeaderboardEntry, error) {
		if query.Sort == "" {
			query.Sort = domain.SortPubgRating
		}
		if _, err := domain.ParseLeaderboardSort(string(query.Sort)); err != nil {
			return query, nil, err
		}

		if query.GameMode == "" {
			query.GameMode = defaultGameMode
		}
		if !query.GameMode.IsValid() {
			return query, nil, fmt.Errorf("%w: game mode %s", domain.ErrInvalidInput, query.GameMode)
		}

		if query.StatsType == "" {
			query.StatsType = domain.StatsTypeSeason
		}
		if !query.StatsType.IsValid() {
			return query, nil, fmt.Errorf("%w: stats type %s", domain.ErrInvalidInput, query.StatsType)
		}

		if query.Limit <= 0 {
			query.Limit = domain.DefaultLeaderboardLimit
		}
		query.Limit = min(query.Limit, domain.MaxLeaderboardLimit)

		if query.StatsType == domain.StatsTypeLifetime {
			query.Season = domain.LifetimeSeasonKey
			query.GameMode = domain.GameModeAll
		}

		if query.Season == "" {
			season, err := seasons.GetCurrentSeason(ctx)
			if err != nil {
				return query, nil, fmt.Errorf("failed to resolve current season: %w", err)
			}
			query.Season = season.ID
		}

		entries, err := repo.GetLeaderboard(ctx, query)
		if err != nil {
			// NOTE: StatsRepository implementations handle their own error reporting
			return query, nil, fmt.Errorf("failed to get leaderboard: %w", err)
		}

		return query, entries, nil
	}
}
