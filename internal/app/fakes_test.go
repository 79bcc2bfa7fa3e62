package app_test

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pochinki/pochinki/internal/domain"
)

type fakeProvider struct {
	t *testing.T

	seasons    []domain.Season
	seasonsErr error

	batchSnapshots map[string]domain.StatSnapshot
	batchErr       error
	batchCalls     [][]string

	lifetime    map[string]domain.StatSnapshot
	lifetimeErr map[string]error

	weapons    map[string][]domain.WeaponMastery
	weaponsErr map[string]error

	lookup      []domain.PlayerIdentity
	lookupErr   error
	lookupNames [][]string

	// Order of upstream fetches, e.g. "lifetime:account.1"
	calls []string
}

func (p *fakeProvider) GetSeasons(ctx context.Context) ([]domain.Season, error) {
	p.calls = append(p.calls, "seasons")
	return p.seasons, p.seasonsErr
}

func (p *fakeProvider) BatchGetSeasonStats(ctx context.Context, playerIDs []string, seasonID string, gameMode domain.GameMode) (map[string]domain.StatSnapshot, error) {
	p.t.Helper()
	require.Equal(p.t, domain.GameModeSquadFPP, gameMode)

	p.calls = append(p.calls, "batch:"+seasonID)
	p.batchCalls = append(p.batchCalls, slices.Clone(playerIDs))
	return p.batchSnapshots, p.batchErr
}

func (p *fakeProvider) GetLifetimeStats(ctx context.Context, playerID string, gameMode domain.GameMode) (domain.StatSnapshot, error) {
	p.t.Helper()
	require.Equal(p.t, domain.GameModeAll, gameMode)

	p.calls = append(p.calls, "lifetime:"+playerID)
	if err := p.lifetimeErr[playerID]; err != nil {
		return domain.StatSnapshot{}, err
	}
	return p.lifetime[playerID], nil
}

func (p *fakeProvider) GetWeaponMastery(ctx context.Context, playerID string) ([]domain.WeaponMastery, error) {
	p.calls = append(p.calls, "weapons:"+playerID)
	if err := p.weaponsErr[playerID]; err != nil {
		return nil, err
	}
	return p.weapons[playerID], nil
}

func (p *fakeProvider) LookupPlayersByNames(ctx context.Context, names []string) ([]domain.PlayerIdentity, error) {
	p.lookupNames = append(p.lookupNames, names)
	return p.lookup, p.lookupErr
}

type fakePlayerRepository struct {
	players    []domain.Player
	playersErr error

	added  []domain.PlayerIdentity
	addErr error

	deactivated []string
}

func (r *fakePlayerRepository) GetActivePlayers(ctx context.Context) ([]domain.Player, error) {
	if r.playersErr != nil {
		return nil, r.playersErr
	}
	active := []domain.Player{}
	for _, player := range r.players {
		if player.Active {
			active = append(active, player)
		}
	}
	return active, nil
}

func (r *fakePlayerRepository) GetPlayer(ctx context.Context, playerID string) (domain.Player, error) {
	for _, player := range r.players {
		if player.ID == playerID {
			return player, nil
		}
	}
	return domain.Player{}, domain.ErrPlayerNotFound
}

func (r *fakePlayerRepository) AddPlayer(ctx context.Context, identity domain.PlayerIdentity) (domain.Player, error) {
	if r.addErr != nil {
		return domain.Player{}, r.addErr
	}
	r.added = append(r.added, identity)
	player := domain.Player{
		DBID:           int64(len(r.players) + 1),
		PlayerIdentity: identity,
		Active:         true,
	}
	r.players = append(r.players, player)
	return player, nil
}

func (r *fakePlayerRepository) SetActive(ctx context.Context, playerID string, active bool) error {
	for i, player := range r.players {
		if player.ID == playerID {
			r.players[i].Active = active
			if !active {
				r.deactivated = append(r.deactivated, playerID)
			}
			return nil
		}
	}
	return domain.ErrPlayerNotFound
}

type fakeSeasonStore struct {
	seasons  []domain.Season
	storeErr error
	stored   int
}

func (s *fakeSeasonStore) StoreSeasons(ctx context.Context, seasons []domain.Season) error {
	if s.storeErr != nil {
		return s.storeErr
	}
	s.stored++
	s.seasons = seasons
	return nil
}

func (s *fakeSeasonStore) GetCurrentSeason(ctx context.Context) (domain.Season, error) {
	season, ok := domain.CurrentSeason(s.seasons)
	if !ok {
		return domain.Season{}, domain.ErrNoCurrentSeason
	}
	return season, nil
}

type storedWeapons struct {
	playerDBID int64
	weapons    []domain.WeaponMastery
	updatedAt  time.Time
}

type fakeStatsRepository struct {
	mu sync.Mutex

	stats    []domain.PlayerStats
	storeErr map[domain.StatsKey]error

	weapons []storedWeapons

	leaderboardQueries []domain.LeaderboardQuery
	leaderboard        []domain.LeaderboardEntry

	lastUpdated time.Time
}

func (r *fakeStatsRepository) StoreStats(ctx context.Context, stats domain.PlayerStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.storeErr[stats.Key]; err != nil {
		return err
	}
	r.stats = append(r.stats, stats)
	return nil
}

func (r *fakeStatsRepository) StoreWeaponMastery(ctx context.Context, playerDBID int64, weapons []domain.WeaponMastery, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.weapons = append(r.weapons, storedWeapons{playerDBID: playerDBID, weapons: weapons, updatedAt: updatedAt})
	return nil
}

func (r *fakeStatsRepository) GetLatestStats(ctx context.Context, key domain.StatsKey) (domain.PlayerStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.stats) - 1; i >= 0; i-- {
		if r.stats[i].Key == key {
			return r.stats[i], nil
		}
	}
	return domain.PlayerStats{}, domain.ErrStatsNotFound
}

func (r *fakeStatsRepository) GetWeaponMastery(ctx context.Context, playerDBID int64) ([]domain.WeaponMastery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.weapons) - 1; i >= 0; i-- {
		if r.weapons[i].playerDBID == playerDBID {
			return r.weapons[i].weapons, nil
		}
	}
	return []domain.WeaponMastery{}, nil
}

func (r *fakeStatsRepository) GetLeaderboard(ctx context.Context, query domain.LeaderboardQuery) ([]domain.LeaderboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaderboardQueries = append(r.leaderboardQueries, query)
	return r.leaderboard, nil
}

func (r *fakeStatsRepository) LastUpdated(ctx context.Context) (time.Time, bool, error) {
	return r.lastUpdated, !r.lastUpdated.IsZero(), nil
}

func (r *fakeStatsRepository) keys() []domain.StatsKey {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]domain.StatsKey, 0, len(r.stats))
	for _, stats := range r.stats {
		keys = append(keys, stats.Key)
	}
	return keys
}
