package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/pochinki/pochinki/internal/adapters/cache"
	"github.com/pochinki/pochinki/internal/adapters/calllog"
	"github.com/pochinki/pochinki/internal/adapters/pubgapi"
	"github.com/pochinki/pochinki/internal/config"
	"github.com/pochinki/pochinki/internal/domain"
	"github.com/pochinki/pochinki/internal/logging"
)

type componentOutput struct {
	Base         float64 `json:"base"`
	Score        float64 `json:"score"`
	Contribution float64 `json:"contribution"`
}

type output struct {
	Player     domain.PlayerIdentity      `json:"player"`
	Snapshot   domain.StatSnapshot        `json:"snapshot"`
	Metrics    domain.DerivedMetrics      `json:"metrics"`
	Rating     float64                    `json:"rating"`
	Tier       domain.RatingTier          `json:"tier"`
	Components map[string]componentOutput `json:"components"`
}

func newComponentOutput(c domain.RatingComponent) componentOutput {
	return componentOutput{Base: c.Base, Score: c.Scaled, Contribution: c.Contribution}
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	if len(os.Args) < 2 || os.Args[1] == "" {
		fail("No player name provided", "usage", "get-stats <player name>")
	}
	name := os.Args[1]

	err := config.LoadDotEnv()
	if err != nil {
		fail("Failed to load .env", "error", err.Error())
	}

	apiKey := os.Getenv("PUBG_API_KEY")
	if apiKey == "" {
		fail("No PUBG API key provided")
	}
	shard := os.Getenv("PUBG_SHARD")
	if shard == "" {
		shard = "steam"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logging.AddToContext(ctx, logger)

	client, err := pubgapi.NewClient(
		&http.Client{Timeout: 30 * time.Second},
		apiKey,
		shard,
		"https://api.pubg.com",
		config.DefaultCacheTTLs(),
		cache.NewBasicCache[json.RawMessage](time.Now),
		calllog.NewMemory(10, time.Minute, time.Now),
		time.Now,
	)
	if err != nil {
		fail("Failed to create client", "error", err.Error())
	}

	identities, err := client.LookupPlayersByNames(ctx, []string{name})
	if err != nil {
		fail("Failed to look up player", "name", name, "error", err.Error())
	}
	if len(identities) == 0 {
		fail("Player not found", "name", name)
	}
	identity := identities[0]

	snapshot, err := client.GetLifetimeStats(ctx, identity.ID, domain.GameModeAll)
	if err != nil {
		fail("Failed to get lifetime stats", "playerID", identity.ID, "error", err.Error())
	}

	stats := domain.NewPlayerStats(domain.StatsKey{
		Season:    domain.LifetimeSeasonKey,
		GameMode:  domain.GameModeAll,
		StatsType: domain.StatsTypeLifetime,
	}, snapshot, time.Now())
	rating := stats.Rating.Rounded()

	marshalled, err := json.MarshalIndent(output{
		Player:   identity,
		Snapshot: stats.Snapshot,
		Metrics:  stats.Metrics,
		Rating:   rating.PubgRating,
		Tier:     rating.Tier(),
		Components: map[string]componentOutput{
			"combat":      newComponentOutput(rating.Combat),
			"survival":    newComponentOutput(rating.Survival),
			"support":     newComponentOutput(rating.Support),
			"consistency": newComponentOutput(rating.Consistency),
		},
	}, "", "  ")
	if err != nil {
		fail("Failed to marshal output", "error", err.Error())
	}

	fmt.Println(string(marshalled))
}
