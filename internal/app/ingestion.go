package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pochinki/pochinki/internal/domain"
	"github.com/pochinki/pochinki/internal/logging"
	"github.com/pochinki/pochinki/internal/reporting"
)

const (
	stageSeasons  = "seasons"
	stageBatch    = "season_batch"
	stageLifetime = "lifetime"
	stageWeapons  = "weapon_mastery"
	stageStore    = "store"
)

// CycleReport summarizes one ingestion cycle
type CycleReport struct {
	// Empty when no current season was known
	Season string

	ActivePlayers int
	// Players with at least one successful write during the cycle
	PlayersUpdated int

	SeasonStatsStored   int
	LifetimeStatsStored int
	WeaponsStored       int

	// Failures by stage. A failed batch chunk counts once.
	Failures map[string]int

	// Calls skipped because the outbound call budget was used up
	RateLimited int
}

func (r *CycleReport) recordFailure(stage string, err error) {
	for _, e := range splitJoined(err) {
		r.Failures[stage]++
		if errors.Is(e, domain.ErrRateLimitExceeded) {
			r.RateLimited++
		}
	}
}

func (r CycleReport) TotalFailures() int {
	total := 0
	for _, count := range r.Failures {
		total += count
	}
	return total
}

// splitJoined flattens errors created by errors.Join
func splitJoined(err error) []error {
	if err == nil {
		return nil
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []error{err}
	}
	errs := []error{}
	for _, e := range joined.Unwrap() {
		errs = append(errs, splitJoined(e)...)
	}
	return errs
}

type RunIngestionCycle func(ctx context.Context) (CycleReport, error)

type ingestionProvider interface {
	GetSeasons(ctx context.Context) ([]domain.Season, error)
	BatchGetSeasonStats(ctx context.Context, playerIDs []string, seasonID string, gameMode domain.GameMode) (map[string]domain.StatSnapshot, error)
	GetLifetimeStats(ctx context.Context, playerID string, gameMode domain.GameMode) (domain.StatSnapshot, error)
	GetWeaponMastery(ctx context.Context, playerID string) ([]domain.WeaponMastery, error)
}

type activePlayerRepository interface {
	GetActivePlayers(ctx context.Context) ([]domain.Player, error)
}

type seasonStore interface {
	StoreSeasons(ctx context.Context, seasons []domain.Season) error
	GetCurrentSeason(ctx context.Context) (domain.Season, error)
}

type statsWriter interface {
	StoreStats(ctx context.Context, stats domain.PlayerStats) error
	StoreWeaponMastery(ctx context.Context, playerDBID int64, weapons []domain.WeaponMastery, updatedAt time.Time) error
}

type ingestionMetricsCollection struct {
	cycleDuration  metric.Float64Histogram
	failures       metric.Int64Counter
	playersUpdated metric.Int64Counter
}

func setupIngestionMetrics(meter metric.Meter) (ingestionMetricsCollection, error) {
	cycleDuration, err := meter.Float64Histogram(
		"app/ingestion_cycle_duration_seconds",
		metric.WithDescription("Duration of complete ingestion cycles"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return ingestionMetricsCollection{}, fmt.Errorf("failed to create metric: %w", err)
	}

	failures, err := meter.Int64Counter(
		"app/ingestion_failures",
		metric.WithDescription("Isolated failures during ingestion by stage"),
	)
	if err != nil {
		return ingestionMetricsCollection{}, fmt.Errorf("failed to create metric: %w", err)
	}

	playersUpdated, err := meter.Int64Counter(
		"app/ingestion_players_updated",
		metric.WithDescription("Players with at least one successful write per cycle"),
	)
	if err != nil {
		return ingestionMetricsCollection{}, fmt.Errorf("failed to create metric: %w", err)
	}

	return ingestionMetricsCollection{
		cycleDuration:  cycleDuration,
		failures:       failures,
		playersUpdated: playersUpdated,
	}, nil
}

type ingestion struct {
	provider ingestionProvider
	players  activePlayerRepository
	seasons  seasonStore
	stats    statsWriter

	gameMode    domain.GameMode
	playerDelay time.Duration

	nowFunc   func() time.Time
	afterFunc func(time.Duration) <-chan time.Time

	metrics ingestionMetricsCollection
}

// BuildRunIngestionCycle fetches seasons, batched season stats and per-player lifetime stats and weapon mastery,
// and stores everything it gets. Failures for one player or chunk never abort the rest of the cycle.
func BuildRunIngestionCycle(
	provider ingestionProvider,
	players activePlayerRepository,
	seasons seasonStore,
	stats statsWriter,
	gameMode domain.GameMode,
	playerDelay time.Duration,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) (RunIngestionCycle, error) {
	meter := otel.Meter("app/ingestion")
	metrics, err := setupIngestionMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	i := &ingestion{
		provider: provider,
		players:  players,
		seasons:  seasons,
		stats:    stats,

		gameMode:    gameMode,
		playerDelay: playerDelay,

		nowFunc:   nowFunc,
		afterFunc: afterFunc,

		metrics: metrics,
	}
	return i.run, nil
}

func (i *ingestion) run(ctx context.Context) (CycleReport, error) {
	start := i.nowFunc()
	ctx = logging.AddMetaToContext(ctx, slog.String("cycle", start.UTC().Format(time.RFC3339)))
	logger := logging.FromContext(ctx)

	report := CycleReport{
		Failures: map[string]int{},
	}
	defer func() {
		i.metrics.cycleDuration.Record(ctx, i.nowFunc().Sub(start).Seconds())
		i.metrics.playersUpdated.Add(ctx, int64(report.PlayersUpdated))
		for stage, count := range report.Failures {
			i.metrics.failures.Add(ctx, int64(count), metric.WithAttributes(attribute.String("stage", stage)))
		}
	}()

	i.refreshSeasons(ctx, &report)

	currentSeason, err := i.seasons.GetCurrentSeason(ctx)
	switch {
	case errors.Is(err, domain.ErrNoCurrentSeason):
		logger.WarnContext(ctx, "no current season known, skipping season stats")
	case err != nil:
		// NOTE: SeasonRepository implementations handle their own error reporting
		logger.ErrorContext(ctx, "failed to get current season", "error", err.Error())
		report.recordFailure(stageSeasons, err)
	default:
		report.Season = currentSeason.ID
	}

	players, err := i.players.GetActivePlayers(ctx)
	if err != nil {
		// NOTE: PlayerRepository implementations handle their own error reporting
		return report, fmt.Errorf("failed to get active players: %w", err)
	}
	report.ActivePlayers = len(players)
	if len(players) == 0 {
		logger.InfoContext(ctx, "no active players")
		return report, nil
	}

	updated := make(map[int64]bool, len(players))

	if report.Season != "" {
		i.ingestSeasonStats(ctx, &report, players, report.Season, updated)
	}

	for idx, player := range players {
		i.ingestPlayer(ctx, &report, player, updated)

		if idx == len(players)-1 {
			break
		}
		select {
		case <-ctx.Done():
			report.PlayersUpdated = len(updated)
			return report, fmt.Errorf("ingestion cycle interrupted: %w", ctx.Err())
		case <-i.afterFunc(i.playerDelay):
		}
	}

	report.PlayersUpdated = len(updated)

	logger.InfoContext(ctx, "ingestion cycle finished",
		"season", report.Season,
		"activePlayers", report.ActivePlayers,
		"playersUpdated", report.PlayersUpdated,
		"failures", report.TotalFailures(),
		"rateLimited", report.RateLimited,
		"duration", i.nowFunc().Sub(start).String(),
	)

	return report, nil
}

func (i *ingestion) refreshSeasons(ctx context.Context, report *CycleReport) {
	logger := logging.FromContext(ctx)

	seasons, err := i.provider.GetSeasons(ctx)
	if err != nil {
		// NOTE: StatsProvider implementations handle their own error reporting
		logger.WarnContext(ctx, "failed to fetch seasons", "error", err.Error())
		report.recordFailure(stageSeasons, err)
		return
	}

	err = i.seasons.StoreSeasons(ctx, seasons)
	if err != nil {
		logger.ErrorContext(ctx, "failed to store seasons", "error", err.Error())
		report.recordFailure(stageStore, err)
	}
}

func (i *ingestion) ingestSeasonStats(ctx context.Context, report *CycleReport, players []domain.Player, seasonID string, updated map[int64]bool) {
	logger := logging.FromContext(ctx)

	byID := make(map[string]domain.Player, len(players))
	ids := make([]string, 0, len(players))
	for _, player := range players {
		byID[player.ID] = player
		ids = append(ids, player.ID)
	}

	snapshots, err := i.provider.BatchGetSeasonStats(ctx, ids, seasonID, i.gameMode)
	if err != nil {
		logger.WarnContext(ctx, "failed to fetch some season stats", "error", err.Error(), "received", len(snapshots))
		report.recordFailure(stageBatch, err)
	}

	now := i.nowFunc()
	// Follow the name order of the player list so writes are deterministic
	for _, id := range ids {
		snapshot, ok := snapshots[id]
		if !ok {
			continue
		}
		player := byID[id]

		stats := domain.NewPlayerStats(domain.StatsKey{
			PlayerDBID: player.DBID,
			Season:     seasonID,
			GameMode:   i.gameMode,
			StatsType:  domain.StatsTypeSeason,
		}, snapshot, now)

		err := i.stats.StoreStats(ctx, stats)
		if err != nil {
			// NOTE: StatsRepository implementations handle their own error reporting
			logger.ErrorContext(ctx, "failed to store season stats", "player", player.Name, "error", err.Error())
			report.recordFailure(stageStore, err)
			continue
		}
		report.SeasonStatsStored++
		updated[player.DBID] = true
	}
}

func (i *ingestion) ingestPlayer(ctx context.Context, report *CycleReport, player domain.Player, updated map[int64]bool) {
	ctx = logging.AddPlayerToContext(ctx, player.ID, player.Name)
	ctx = reporting.SetPlayerIDInContext(ctx, player.ID)
	logger := logging.FromContext(ctx)

	lifetime, err := i.provider.GetLifetimeStats(ctx, player.ID, domain.GameModeAll)
	if err != nil {
		logger.WarnContext(ctx, "failed to fetch lifetime stats", "error", err.Error())
		report.recordFailure(stageLifetime, err)
	} else {
		stats := domain.NewPlayerStats(domain.StatsKey{
			PlayerDBID: player.DBID,
			Season:     domain.LifetimeSeasonKey,
			GameMode:   domain.GameModeAll,
			StatsType:  domain.StatsTypeLifetime,
		}, lifetime, i.nowFunc())

		err := i.stats.StoreStats(ctx, stats)
		if err != nil {
			logger.ErrorContext(ctx, "failed to store lifetime stats", "error", err.Error())
			report.recordFailure(stageStore, err)
		} else {
			report.LifetimeStatsStored++
			updated[player.DBID] = true
		}
	}

	weapons, err := i.provider.GetWeaponMastery(ctx, player.ID)
	if err != nil {
		logger.WarnContext(ctx, "failed to fetch weapon mastery", "error", err.Error())
		report.recordFailure(stageWeapons, err)
		return
	}
	if len(weapons) == 0 {
		return
	}

	err = i.stats.StoreWeaponMastery(ctx, player.DBID, weapons, i.nowFunc())
	if err != nil {
		logger.ErrorContext(ctx, "failed to store weapon mastery", "error", err.Error())
		report.recordFailure(stageStore, err)
		return
	}
	report.WeaponsStored += len(weapons)
	updated[player.DBID] = true
}
