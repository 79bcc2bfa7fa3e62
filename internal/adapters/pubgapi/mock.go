package pubgapi

import (
	"context"

	"github.com/pochinki/pochinki/internal/domain"
)

const mockedSeasonID = "division.bro.official.pc-2018-01"

// mockedProvider serves canned data so the service can run locally without an API key
type mockedProvider struct {
	shard string
}

func NewMockedProvider(shard string) StatsProvider {
	return &mockedProvider{shard: shard}
}

func (m *mockedProvider) GetSeasons(ctx context.Context) ([]domain.Season, error) {
	return []domain.Season{{ID: mockedSeasonID, IsCurrent: true}}, nil
}

func (m *mockedProvider) GetCurrentSeason(ctx context.Context) (domain.Season, error) {
	return domain.Season{ID: mockedSeasonID, IsCurrent: true}, nil
}

func (m *mockedProvider) LookupPlayersByNames(ctx context.Context, names []string) ([]domain.PlayerIdentity, error) {
	players := make([]domain.PlayerIdentity, 0, len(names))
	for _, name := range names {
		players = append(players, domain.PlayerIdentity{
			ID:       mockedPlayerID(name),
			Name:     name,
			Platform: m.shard,
			Shard:    m.shard,
		})
	}
	return players, nil
}

func (m *mockedProvider) GetPlayerSeasonStats(ctx context.Context, playerID, seasonID string, gameMode domain.GameMode) (domain.StatSnapshot, error) {
	return mockedSnapshot(playerID, gameMode, domain.StatsTypeSeason), nil
}

func (m *mockedProvider) GetLifetimeStats(ctx context.Context, playerID string, gameMode domain.GameMode) (domain.StatSnapshot, error) {
	snapshot := mockedSnapshot(playerID, gameMode, domain.StatsTypeLifetime)
	return snapshot.Add(snapshot).Add(snapshot), nil
}

func (m *mockedProvider) GetRankedStats(ctx context.Context, playerID, seasonID string, gameMode domain.GameMode) (domain.StatSnapshot, error) {
	return mockedSnapshot(playerID, gameMode, domain.StatsTypeRanked), nil
}

func (m *mockedProvider) BatchGetSeasonStats(ctx context.Context, playerIDs []string, seasonID string, gameMode domain.GameMode) (map[string]domain.StatSnapshot, error) {
	stats := make(map[string]domain.StatSnapshot, len(playerIDs))
	for _, playerID := range playerIDs {
		stats[playerID] = mockedSnapshot(playerID, gameMode, domain.StatsTypeSeason)
	}
	return stats, nil
}

func (m *mockedProvider) GetWeaponMastery(ctx context.Context, playerID string) ([]domain.WeaponMastery, error) {
	return []domain.WeaponMastery{
		{Name: "Item_Weapon_BerylM762_C", Category: domain.WeaponCategory("Item_Weapon_BerylM762_C"), XP: 120000, Level: 42, Kills: 310, Damage: 45000, Headshots: 70, Defeats: 290, LongestDefeat: 180},
		{Name: "Item_Weapon_Mini14_C", Category: domain.WeaponCategory("Item_Weapon_Mini14_C"), XP: 64000, Level: 27, Kills: 120, Damage: 19000, Headshots: 41, Defeats: 111, LongestDefeat: 412},
	}, nil
}

func (m *mockedProvider) GetLeaderboard(ctx context.Context, seasonID string, gameMode domain.GameMode) ([]LeaderboardEntry, error) {
	return []LeaderboardEntry{}, nil
}

func mockedPlayerID(name string) string {
	return "account." + contentHash(name)
}

// Varies with the player so local leaderboards aren't flat
func mockedSnapshot(playerID string, gameMode domain.GameMode, statsType domain.StatsType) domain.StatSnapshot {
	seed := 0
	for _, r := range playerID {
		seed += int(r)
	}
	matches := 20 + seed%80
	kills := matches + seed%150
	return domain.StatSnapshot{
		Matches:       matches,
		Wins:          matches / 10,
		Top10s:        matches / 3,
		Kills:         kills,
		Deaths:        matches - matches/10,
		DamageDealt:   float64(kills) * 140,
		HeadshotKills: kills / 4,
		LongestKill:   float64(100 + seed%300),
		Assists:       matches / 2,
		Knockdowns:    kills + matches/4,
		Revives:       matches / 5,
		Heals:         matches * 2,
		Boosts:        matches * 3,
		TimeSurvived:  float64(matches) * 900,
		WalkDistance:  float64(matches) * 1800,
		RideDistance:  float64(matches) * 2500,
		StatsType:     statsType,
		GameMode:      gameMode,
	}
}
