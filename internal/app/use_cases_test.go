package app_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pochinki/pochinki/internal/app"
	"github.com/pochinki/pochinki/internal/domain"
	"github.com/pochinki/pochinki/internal/domaintest"
)

func TestBuildAddPlayer(t *testing.T) {
	t.Parallel()

	shroud := domain.PlayerIdentity{ID: "account.shroud", Name: "shroud", Platform: "steam", Shard: "steam"}

	t.Run("found", func(t *testing.T) {
		t.Parallel()

		provider := &fakeProvider{t: t, lookup: []domain.PlayerIdentity{shroud}}
		repo := &fakePlayerRepository{}

		player, err := app.BuildAddPlayer(provider, repo)(t.Context(), "  shroud ")
		require.NoError(t, err)
		require.Equal(t, shroud, player.PlayerIdentity)
		require.True(t, player.Active)
		require.Equal(t, [][]string{{"shroud"}}, provider.lookupNames)
		require.Equal(t, []domain.PlayerIdentity{shroud}, repo.added)
	})

	t.Run("case insensitive match", func(t *testing.T) {
		t.Parallel()

		provider := &fakeProvider{t: t, lookup: []domain.PlayerIdentity{shroud}}
		repo := &fakePlayerRepository{}

		player, err := app.BuildAddPlayer(provider, repo)(t.Context(), "SHROUD")
		require.NoError(t, err)
		require.Equal(t, "shroud", player.Name)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		provider := &fakeProvider{t: t, lookup: []domain.PlayerIdentity{}}
		repo := &fakePlayerRepository{}

		_, err := app.BuildAddPlayer(provider, repo)(t.Context(), "nobody")
		require.ErrorIs(t, err, domain.ErrPlayerNotFound)
		require.Empty(t, repo.added)
	})

	t.Run("rate limited", func(t *testing.T) {
		t.Parallel()

		provider := &fakeProvider{t: t, lookupErr: domain.ErrRateLimitExceeded}
		repo := &fakePlayerRepository{}

		_, err := app.BuildAddPlayer(provider, repo)(t.Context(), "shroud")
		require.ErrorIs(t, err, domain.ErrRateLimitExceeded)
		require.NotErrorIs(t, err, domain.ErrPlayerNotFound)
		require.Empty(t, repo.added)
	})

	t.Run("invalid names", func(t *testing.T) {
		t.Parallel()

		for _, name := range []string{"", "   ", string(make([]byte, 65))} {
			provider := &fakeProvider{t: t}
			_, err := app.BuildAddPlayer(provider, &fakePlayerRepository{})(t.Context(), name)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
			require.Empty(t, provider.lookupNames)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()

		provider := &fakeProvider{t: t, lookup: []domain.PlayerIdentity{shroud}}
		repo := &fakePlayerRepository{addErr: fmt.Errorf("%w: boom", domain.ErrPersistence)}

		_, err := app.BuildAddPlayer(provider, repo)(t.Context(), "shroud")
		require.ErrorIs(t, err, domain.ErrPersistence)
	})
}

func TestBuildDeactivatePlayer(t *testing.T) {
	t.Parallel()

	repo := &fakePlayerRepository{players: testPlayers()}
	deactivate := app.BuildDeactivatePlayer(repo)

	require.NoError(t, deactivate(t.Context(), "account.bob"))
	require.Equal(t, []string{"account.bob"}, repo.deactivated)

	active, err := repo.GetActivePlayers(t.Context())
	require.NoError(t, err)
	require.Len(t, active, 2)

	require.ErrorIs(t, deactivate(t.Context(), "account.unknown"), domain.ErrPlayerNotFound)
}

func TestBuildGetLeaderboard(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		repo := &fakeStatsRepository{}
		getLeaderboard := app.BuildGetLeaderboard(&fakeSeasonStore{seasons: testSeasons}, repo, domain.GameModeSquadFPP)

		query, _, err := getLeaderboard(t.Context(), domain.LeaderboardQuery{})
		require.NoError(t, err)

		expected := domain.LeaderboardQuery{
			Season:    currentSeasonID,
			GameMode:  domain.GameModeSquadFPP,
			StatsType: domain.StatsTypeSeason,
			Sort:      domain.SortPubgRating,
			Limit:     domain.DefaultLeaderboardLimit,
		}
		require.Equal(t, expected, query)
		require.Equal(t, []domain.LeaderboardQuery{expected}, repo.leaderboardQueries)
	})

	t.Run("explicit values are kept and the limit is capped", func(t *testing.T) {
		t.Parallel()

		repo := &fakeStatsRepository{}
		getLeaderboard := app.BuildGetLeaderboard(&fakeSeasonStore{}, repo, domain.GameModeSquadFPP)

		query, _, err := getLeaderboard(t.Context(), domain.LeaderboardQuery{
			Season:        "division.bro.official.pc-2018-30",
			GameMode:      domain.GameModeDuo,
			Sort:          domain.SortKills,
			Limit:         1000,
			MinConfidence: domain.ConfidenceHigh,
		})
		require.NoError(t, err)
		require.Equal(t, "division.bro.official.pc-2018-30", query.Season)
		require.Equal(t, domain.GameModeDuo, query.GameMode)
		require.Equal(t, domain.SortKills, query.Sort)
		require.Equal(t, domain.MaxLeaderboardLimit, query.Limit)
		require.Equal(t, domain.ConfidenceHigh, query.MinConfidence)
	})

	t.Run("lifetime leaderboard", func(t *testing.T) {
		t.Parallel()

		repo := &fakeStatsRepository{}
		getLeaderboard := app.BuildGetLeaderboard(&fakeSeasonStore{}, repo, domain.GameModeSquadFPP)

		query, _, err := getLeaderboard(t.Context(), domain.LeaderboardQuery{StatsType: domain.StatsTypeLifetime})
		require.NoError(t, err)
		require.Equal(t, domain.LifetimeSeasonKey, query.Season)
		require.Equal(t, domain.GameModeAll, query.GameMode)
	})

	t.Run("invalid sort", func(t *testing.T) {
		t.Parallel()

		repo := &fakeStatsRepository{}
		getLeaderboard := app.BuildGetLeaderboard(&fakeSeasonStore{seasons: testSeasons}, repo, domain.GameModeSquadFPP)

		_, _, err := getLeaderboard(t.Context(), domain.LeaderboardQuery{Sort: "name"})
		require.ErrorIs(t, err, domain.ErrInvalidLeaderboardSort)
		require.Empty(t, repo.leaderboardQueries)
	})

	t.Run("invalid mode", func(t *testing.T) {
		t.Parallel()

		getLeaderboard := app.BuildGetLeaderboard(&fakeSeasonStore{seasons: testSeasons}, &fakeStatsRepository{}, domain.GameModeSquadFPP)

		_, _, err := getLeaderboard(t.Context(), domain.LeaderboardQuery{GameMode: "tdm"})
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("no current season", func(t *testing.T) {
		t.Parallel()

		getLeaderboard := app.BuildGetLeaderboard(&fakeSeasonStore{}, &fakeStatsRepository{}, domain.GameModeSquadFPP)

		_, _, err := getLeaderboard(t.Context(), domain.LeaderboardQuery{})
		require.ErrorIs(t, err, domain.ErrNoCurrentSeason)
	})
}

func TestBuildGetPlayerStats(t *testing.T) {
	t.Parallel()

	now := domaintest.Time(t)
	players := &fakePlayerRepository{players: testPlayers()}
	seasons := &fakeSeasonStore{seasons: testSeasons}
	repo := &fakeStatsRepository{}

	seasonStats := domain.NewPlayerStats(seasonStatsKey(2), domaintest.NewSnapshotBuilder().WithMatches(20).Build(), now)
	lifetimeStats := domain.NewPlayerStats(lifetimeStatsKey(2), domaintest.NewSnapshotBuilder().WithMatches(200).Build(), now)
	require.NoError(t, repo.StoreStats(t.Context(), seasonStats))
	require.NoError(t, repo.StoreStats(t.Context(), lifetimeStats))

	getPlayerStats := app.BuildGetPlayerStats(players, seasons, repo, domain.GameModeSquadFPP)

	t.Run("current season by default", func(t *testing.T) {
		t.Parallel()

		player, stats, err := getPlayerStats(t.Context(), "account.bob", app.PlayerStatsQuery{})
		require.NoError(t, err)
		require.Equal(t, "bob", player.Name)
		require.Equal(t, seasonStats, stats)
	})

	t.Run("lifetime", func(t *testing.T) {
		t.Parallel()

		_, stats, err := getPlayerStats(t.Context(), "account.bob", app.PlayerStatsQuery{
			StatsType: domain.StatsTypeLifetime,
			GameMode:  domain.GameModeSolo,
		})
		require.NoError(t, err)
		require.Equal(t, lifetimeStats, stats)
	})

	t.Run("unknown player", func(t *testing.T) {
		t.Parallel()

		_, _, err := getPlayerStats(t.Context(), "account.unknown", app.PlayerStatsQuery{})
		require.ErrorIs(t, err, domain.ErrPlayerNotFound)
	})

	t.Run("no stats", func(t *testing.T) {
		t.Parallel()

		_, _, err := getPlayerStats(t.Context(), "account.alice", app.PlayerStatsQuery{})
		require.ErrorIs(t, err, domain.ErrStatsNotFound)
	})

	t.Run("invalid stats type", func(t *testing.T) {
		t.Parallel()

		_, _, err := getPlayerStats(t.Context(), "account.bob", app.PlayerStatsQuery{StatsType: "weekly"})
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestBuildGetWeaponMastery(t *testing.T) {
	t.Parallel()

	players := &fakePlayerRepository{players: testPlayers()}
	repo := &fakeStatsRepository{}
	weapons := []domain.WeaponMastery{{Name: "Item_Weapon_HK416_C", XP: 100}}
	require.NoError(t, repo.StoreWeaponMastery(t.Context(), 1, weapons, domaintest.Time(t)))

	getWeaponMastery := app.BuildGetWeaponMastery(players, repo)

	player, got, err := getWeaponMastery(t.Context(), "account.alice")
	require.NoError(t, err)
	require.Equal(t, int64(1), player.DBID)
	require.Equal(t, weapons, got)

	_, got, err = getWeaponMastery(t.Context(), "account.bob")
	require.NoError(t, err)
	require.Empty(t, got)

	_, _, err = getWeaponMastery(t.Context(), "account.unknown")
	require.ErrorIs(t, err, domain.ErrPlayerNotFound)
}

type fakeCallLog struct {
	usage     domain.CallUsage
	cutoffs   []time.Time
	deleted   int64
	deleteErr error
}

func (c *fakeCallLog) Usage(ctx context.Context) (domain.CallUsage, error) {
	return c.usage, nil
}

func (c *fakeCallLog) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	c.cutoffs = append(c.cutoffs, cutoff)
	return c.deleted, c.deleteErr
}

type fakePurger struct {
	calls int
}

func (p *fakePurger) PurgeExpired(ctx context.Context) (int64, error) {
	p.calls++
	return 3, nil
}

func TestBuildGetAPIStatus(t *testing.T) {
	t.Parallel()

	now := domaintest.Time(t)
	callLog := &fakeCallLog{usage: domain.NewCallUsage(4, 10, time.Minute)}

	t.Run("with data", func(t *testing.T) {
		t.Parallel()

		status, err := app.BuildGetAPIStatus(callLog, &fakeStatsRepository{lastUpdated: now})(t.Context())
		require.NoError(t, err)
		require.Equal(t, app.StatusOperational, status.Status)
		require.Equal(t, 6, status.Usage.Remaining)
		require.Equal(t, now, status.LastUpdated)
	})

	t.Run("no data yet", func(t *testing.T) {
		t.Parallel()

		status, err := app.BuildGetAPIStatus(callLog, &fakeStatsRepository{})(t.Context())
		require.NoError(t, err)
		require.True(t, status.LastUpdated.IsZero())
	})
}

func TestBuildCleanup(t *testing.T) {
	t.Parallel()

	now := domaintest.Time(t)
	nowFunc := func() time.Time { return now }

	t.Run("with purger", func(t *testing.T) {
		t.Parallel()

		callLog := &fakeCallLog{deleted: 12}
		purger := &fakePurger{}

		err := app.BuildCleanup(callLog, purger, nowFunc)(t.Context())
		require.NoError(t, err)
		require.Equal(t, []time.Time{now.Add(-7 * 24 * time.Hour)}, callLog.cutoffs)
		require.Equal(t, 1, purger.calls)
	})

	t.Run("without purger", func(t *testing.T) {
		t.Parallel()

		callLog := &fakeCallLog{}
		err := app.BuildCleanup(callLog, nil, nowFunc)(t.Context())
		require.NoError(t, err)
		require.Len(t, callLog.cutoffs, 1)
	})

	t.Run("call log failure", func(t *testing.T) {
		t.Parallel()

		callLog := &fakeCallLog{deleteErr: domain.ErrPersistence}
		purger := &fakePurger{}
		err := app.BuildCleanup(callLog, purger, nowFunc)(t.Context())
		require.ErrorIs(t, err, domain.ErrPersistence)
		require.Zero(t, purger.calls)
	})
}
