package domain

import "fmt"

// LeaderboardSort is a column the leaderboard may be ordered by.
// Only the values below are accepted so the column can be interpolated into SQL.
type LeaderboardSort string

const (
	SortPubgRating    LeaderboardSort = "pubg_rating"
	SortCombatScore   LeaderboardSort = "combat_score"
	SortSurvivalScore LeaderboardSort = "survival_score"
	SortSupportScore  LeaderboardSort = "support_score"
	SortKDRatio       LeaderboardSort = "kd_ratio"
	SortWins          LeaderboardSort = "wins"
	SortKills         LeaderboardSort = "kills"
)

var leaderboardSorts = []LeaderboardSort{
	SortPubgRating,
	SortCombatScore,
	SortSurvivalScore,
	SortSupportScore,
	SortKDRatio,
	SortWins,
	SortKills,
}

func ParseLeaderboardSort(s string) (LeaderboardSort, error) {
	if s == "" {
		return SortPubgRating, nil
	}
	for _, sort := range leaderboardSorts {
		if string(sort) == s {
			return sort, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidLeaderboardSort, s)
}

const (
	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 100
)

type LeaderboardQuery struct {
	// Empty selects the current season
	Season        string
	GameMode      GameMode
	StatsType     StatsType
	Sort          LeaderboardSort
	Limit         int
	MinConfidence ConfidenceTier
}

type LeaderboardEntry struct {
	Rank   int
	Player Player
	Stats  PlayerStats
}
