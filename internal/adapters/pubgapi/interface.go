package pubgapi

import (
	"context"

	"github.com/pochinki/pochinki/internal/domain"
)

// StatsProvider is the read side of the upstream stats API.
//
// Every method may return domain.ErrRateLimitExceeded when the outbound call budget is used up,
// domain.ErrTransport, domain.ErrTimeout, *domain.UpstreamError or domain.ErrMalformedResponse.
type StatsProvider interface {
	GetSeasons(ctx context.Context) ([]domain.Season, error)

	// Returns domain.ErrNoCurrentSeason if no season is flagged as current
	GetCurrentSeason(ctx context.Context) (domain.Season, error)

	// Names that don't exist are missing from the result.
	// Failed chunks are left out of the result and their errors are joined into the returned error.
	LookupPlayersByNames(ctx context.Context, names []string) ([]domain.PlayerIdentity, error)

	GetPlayerSeasonStats(ctx context.Context, playerID, seasonID string, gameMode domain.GameMode) (domain.StatSnapshot, error)
	GetLifetimeStats(ctx context.Context, playerID string, gameMode domain.GameMode) (domain.StatSnapshot, error)
	GetRankedStats(ctx context.Context, playerID, seasonID string, gameMode domain.GameMode) (domain.StatSnapshot, error)

	// Keyed by player id. Same partial failure semantics as LookupPlayersByNames.
	BatchGetSeasonStats(ctx context.Context, playerIDs []string, seasonID string, gameMode domain.GameMode) (map[string]domain.StatSnapshot, error)

	GetWeaponMastery(ctx context.Context, playerID string) ([]domain.WeaponMastery, error)
	GetLeaderboard(ctx context.Context, seasonID string, gameMode domain.GameMode) ([]LeaderboardEntry, error)
}

// LeaderboardEntry is one row of the upstream ranked leaderboard
type LeaderboardEntry struct {
	Rank       int
	PlayerID   string
	Name       string
	RankPoints float64
	Games      int
	Wins       int
	Kills      int
}
