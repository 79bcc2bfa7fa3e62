package pubgapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pochinki/pochinki/internal/domain"
	"github.com/pochinki/pochinki/internal/logging"
)

func (c *Client) GetSeasons(ctx context.Context) ([]domain.Season, error) {
	return fetch(ctx, c, endpoint{
		operation: "seasons",
		path:      fmt.Sprintf("/shards/%s/seasons", c.shard),
		cacheKey:  fmt.Sprintf("seasons_%s", c.shard),
		ttl:       c.ttls.Seasons,
	}, parseSeasons)
}

func (c *Client) GetCurrentSeason(ctx context.Context) (domain.Season, error) {
	seasons, err := c.GetSeasons(ctx)
	if err != nil {
		return domain.Season{}, fmt.Errorf("failed to get seasons: %w", err)
	}

	season, ok := domain.CurrentSeason(seasons)
	if !ok {
		return domain.Season{}, domain.ErrNoCurrentSeason
	}
	return season, nil
}

func (c *Client) LookupPlayersByNames(ctx context.Context, names []string) ([]domain.PlayerIdentity, error) {
	players := []domain.PlayerIdentity{}
	var errs []error

	for _, chunk := range chunks(names) {
		filter := joinFilter(chunk)
		found, err := fetch(ctx, c, endpoint{
			operation: "player_lookup",
			path:      fmt.Sprintf("/shards/%s/players?filter[playerNames]=%s", c.shard, filter),
			cacheKey:  "player_lookup_" + contentHash(strings.Join(chunk, ",")),
			ttl:       c.ttls.PlayerLookup,
		}, func(data []byte) ([]domain.PlayerIdentity, error) {
			return parsePlayers(data, c.shard)
		})
		if isNotFound(err) {
			// None of the names in the chunk exist
			continue
		}
		if err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "Failed to look up players", slog.Int("chunkSize", len(chunk)), slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		players = append(players, found...)
	}

	return players, errors.Join(errs...)
}

func (c *Client) GetPlayerSeasonStats(ctx context.Context, playerID, seasonID string, gameMode domain.GameMode) (domain.StatSnapshot, error) {
	return fetch(ctx, c, endpoint{
		operation: "player_season",
		path:      fmt.Sprintf("/shards/%s/players/%s/seasons/%s", c.shard, playerID, seasonID),
		cacheKey:  fmt.Sprintf("player_stats_%s_%s", playerID, seasonID),
		ttl:       c.ttls.PlayerStats,
	}, func(data []byte) (domain.StatSnapshot, error) {
		return parsePlayerSeason(data, gameMode, domain.StatsTypeSeason)
	})
}

func (c *Client) GetLifetimeStats(ctx context.Context, playerID string, gameMode domain.GameMode) (domain.StatSnapshot, error) {
	return fetch(ctx, c, endpoint{
		operation: "player_lifetime",
		path:      fmt.Sprintf("/shards/%s/players/%s/seasons/lifetime", c.shard, playerID),
		cacheKey:  fmt.Sprintf("player_lifetime_%s", playerID),
		ttl:       c.ttls.LifetimeStats,
	}, func(data []byte) (domain.StatSnapshot, error) {
		return parsePlayerSeason(data, gameMode, domain.StatsTypeLifetime)
	})
}

func (c *Client) GetRankedStats(ctx context.Context, playerID, seasonID string, gameMode domain.GameMode) (domain.StatSnapshot, error) {
	return fetch(ctx, c, endpoint{
		operation: "player_ranked",
		path:      fmt.Sprintf("/shards/%s/players/%s/seasons/%s/ranked", c.shard, playerID, seasonID),
		cacheKey:  fmt.Sprintf("player_ranked_%s_%s", playerID, seasonID),
		ttl:       c.ttls.PlayerStats,
	}, func(data []byte) (domain.StatSnapshot, error) {
		return parsePlayerSeason(data, gameMode, domain.StatsTypeRanked)
	})
}

func (c *Client) BatchGetSeasonStats(ctx context.Context, playerIDs []string, seasonID string, gameMode domain.GameMode) (map[string]domain.StatSnapshot, error) {
	stats := make(map[string]domain.StatSnapshot, len(playerIDs))
	var errs []error

	for _, chunk := range chunks(playerIDs) {
		ids := strings.Join(chunk, ",")
		chunkStats, err := fetch(ctx, c, endpoint{
			operation: "batch_season",
			path:      fmt.Sprintf("/shards/%s/seasons/%s/gameMode/%s/players?filter[playerIds]=%s", c.shard, seasonID, gameMode, joinFilter(chunk)),
			cacheKey:  "batch_stats_" + contentHash(fmt.Sprintf("%s_%s_%s", seasonID, gameMode, ids)),
			ttl:       c.ttls.PlayerStats,
		}, func(data []byte) (map[string]domain.StatSnapshot, error) {
			return parseBatchSeasonStats(data, gameMode)
		})
		if err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "Failed to batch fetch season stats", slog.Int("chunkSize", len(chunk)), slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		for playerID, snapshot := range chunkStats {
			stats[playerID] = snapshot
		}
	}

	return stats, errors.Join(errs...)
}

func (c *Client) GetWeaponMastery(ctx context.Context, playerID string) ([]domain.WeaponMastery, error) {
	return fetch(ctx, c, endpoint{
		operation: "weapon_mastery",
		path:      fmt.Sprintf("/shards/%s/players/%s/weapon_mastery", c.shard, playerID),
		cacheKey:  fmt.Sprintf("weapon_mastery_%s", playerID),
		ttl:       c.ttls.WeaponMastery,
	}, parseWeaponMastery)
}

func (c *Client) GetLeaderboard(ctx context.Context, seasonID string, gameMode domain.GameMode) ([]LeaderboardEntry, error) {
	return fetch(ctx, c, endpoint{
		operation: "leaderboard",
		path:      fmt.Sprintf("/shards/%s/leaderboards/%s/%s", c.shard, seasonID, gameMode),
		cacheKey:  fmt.Sprintf("leaderboard_%s_%s", seasonID, gameMode),
		ttl:       c.ttls.Leaderboards,
	}, parseLeaderboard)
}

func isNotFound(err error) bool {
	var upstreamErr *domain.UpstreamError
	return errors.As(err, &upstreamErr) && upstreamErr.StatusCode == 404
}
