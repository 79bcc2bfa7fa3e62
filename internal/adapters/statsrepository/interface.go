package statsrepository

import (
	"context"
	"time"

	"github.com/pochinki/pochinki/internal/domain"
)

type StatsRepository interface {
	// StoreStats upserts the snapshot and its derived values on stats.Key
	StoreStats(ctx context.Context, stats domain.PlayerStats) error

	// Returns domain.ErrStatsNotFound if nothing is stored for the key
	GetLatestStats(ctx context.Context, key domain.StatsKey) (domain.PlayerStats, error)

	// Every stored key for the player, most recently updated first
	ListStats(ctx context.Context, playerDBID int64) ([]domain.PlayerStats, error)

	// Active players only. query.Season must be set.
	GetLeaderboard(ctx context.Context, query domain.LeaderboardQuery) ([]domain.LeaderboardEntry, error)

	// Time of the most recent stats write, false if nothing has been written
	LastUpdated(ctx context.Context) (time.Time, bool, error)

	// Upserts every weapon on (player, weapon name)
	StoreWeaponMastery(ctx context.Context, playerDBID int64, weapons []domain.WeaponMastery, updatedAt time.Time) error

	// Ordered by xp, highest first
	GetWeaponMastery(ctx context.Context, playerDBID int64) ([]domain.WeaponMastery, error)
}
