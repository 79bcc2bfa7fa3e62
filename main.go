package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "golang.org/x/crypto/x509roots/fallback"
	"golang.org/x/sync/errgroup"

	"github.com/pochinki/pochinki/internal/adapters/cache"
	"github.com/pochinki/pochinki/internal/adapters/calllog"
	"github.com/pochinki/pochinki/internal/adapters/database"
	"github.com/pochinki/pochinki/internal/adapters/playerrepository"
	"github.com/pochinki/pochinki/internal/adapters/pubgapi"
	"github.com/pochinki/pochinki/internal/adapters/seasonrepository"
	"github.com/pochinki/pochinki/internal/adapters/statsrepository"
	"github.com/pochinki/pochinki/internal/app"
	"github.com/pochinki/pochinki/internal/config"
	"github.com/pochinki/pochinki/internal/logging"
	"github.com/pochinki/pochinki/internal/ports"
	"github.com/pochinki/pochinki/internal/reporting"
	"github.com/pochinki/pochinki/internal/scheduler"
	"github.com/pochinki/pochinki/internal/telemetry"
)

const serviceName = "pochinki"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instanceID := uuid.New().String()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	err := config.LoadDotEnv()
	if err != nil {
		fail("Failed to load .env", "error", err.Error())
	}

	conf, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}

	logger = slog.New(
		logging.NewTraceLogHandler(slog.NewJSONHandler(os.Stdout, nil), conf.GCPProject()),
	).With("instanceID", instanceID)
	ctx = logging.AddToContext(ctx, logger)

	logger.Info("Loaded config", "config", conf.NonSensitiveString())

	if conf.OTELEnabled() {
		shutdownOTel, err := telemetry.SetupOTelSDK(ctx, telemetry.Options{
			ServiceName:      serviceName,
			Environment:      conf.Environment(),
			TraceSampleRatio: 0.1,
		})
		if err != nil {
			fail("Failed to set up OpenTelemetry", "error", err.Error())
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownOTel(shutdownCtx); err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(conf)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	logger.Info("Initializing database connection")
	db, err := database.NewPostgresDatabaseFromConfig(conf)
	if err != nil {
		fail("Failed to initialize database", "error", err.Error())
	}
	defer db.Close()
	logger.Info("Initialized database connection")

	schemaName := database.GetSchemaName(!conf.IsProduction())

	schemaVersion, err := database.NewDatabaseMigrator(db, logger.With("component", "migrator")).Migrate(ctx, schemaName)
	if err != nil {
		fail("Failed to migrate database", "error", err.Error())
	}
	logger.Info("Database ready", "schema", schemaName, "version", schemaVersion)

	// Expired cache rows are only purged by the cleanup job for the postgres backend
	var responseCache cache.Cache[json.RawMessage]
	var cleanup app.Cleanup
	var callLog calllog.CallLog
	if conf.IsDevelopment() {
		callLog = calllog.NewMemory(conf.APIRateLimit(), conf.APIRateWindow(), time.Now)
	} else {
		callLog = calllog.NewPostgres(db, schemaName, conf.APIRateLimit(), conf.APIRateWindow(), time.Now)
	}

	switch conf.CacheBackend() {
	case config.CacheBackendMemory:
		ttlCache := cache.NewTTLCache[json.RawMessage](10 * time.Second)
		defer ttlCache.Stop()
		responseCache = ttlCache
		cleanup = app.BuildCleanup(callLog, nil, time.Now)
	case config.CacheBackendPostgres:
		postgresCache := cache.NewPostgres[json.RawMessage](db, schemaName, time.Now)
		responseCache = postgresCache
		cleanup = app.BuildCleanup(callLog, postgresCache, time.Now)
	case config.CacheBackendRedis:
		redisClient, err := cache.NewRedisClient(conf.RedisURL())
		if err != nil {
			fail("Failed to initialize redis client", "error", err.Error())
		}
		defer redisClient.Close()
		responseCache = cache.NewRedis[json.RawMessage](redisClient)
		cleanup = app.BuildCleanup(callLog, nil, time.Now)
	default:
		fail("Unknown cache backend", "backend", string(conf.CacheBackend()))
	}
	logger.Info("Initialized response cache", "backend", string(conf.CacheBackend()))

	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	provider, err := pubgapi.NewClientOrMock(conf, httpClient, responseCache, callLog, time.Now)
	if err != nil {
		fail("Failed to initialize PUBG API", "error", err.Error())
	}
	logger.Info("Initialized PUBG API")

	playerRepo := playerrepository.NewPostgres(db, schemaName, time.Now)
	statsRepo := statsrepository.NewPostgres(db, schemaName)
	seasonRepo := seasonrepository.NewPostgres(db, schemaName, time.Now)
	logger.Info("Initialized repositories")

	allowedOrigins, err := ports.NewDomainSuffixes(conf.AllowedOrigins()...)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}
	if conf.IsDevelopment() {
		allowedOrigins = allowedOrigins.AllowLocalhost()
	}

	runIngestionCycle, err := app.BuildRunIngestionCycle(
		provider,
		playerRepo,
		seasonRepo,
		statsRepo,
		conf.GameMode(),
		conf.PlayerDelay(),
		time.Now,
		time.After,
	)
	if err != nil {
		fail("Failed to initialize ingestion", "error", err.Error())
	}

	addPlayer := app.BuildAddPlayer(provider, playerRepo)
	deactivatePlayer := app.BuildDeactivatePlayer(playerRepo)
	getLeaderboard := app.BuildGetLeaderboard(seasonRepo, statsRepo, conf.GameMode())
	getPlayerStats := app.BuildGetPlayerStats(playerRepo, seasonRepo, statsRepo, conf.GameMode())
	getWeaponMastery := app.BuildGetWeaponMastery(playerRepo, statsRepo)
	getAPIStatus := app.BuildGetAPIStatus(callLog, statsRepo)

	ingestionScheduler, err := scheduler.New(
		logger,
		conf.UpdateInterval(),
		runIngestionCycle,
		cleanup,
	)
	if err != nil {
		fail("Failed to initialize scheduler", "error", err.Error())
	}

	mux := http.NewServeMux()

	mux.HandleFunc(
		"OPTIONS /v1/status",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/status",
		ports.MakeGetStatusHandler(
			getAPIStatus,
			allowedOrigins,
			logger.With("port", "status"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/leaderboard",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/leaderboard",
		ports.MakeGetLeaderboardHandler(
			getLeaderboard,
			allowedOrigins,
			logger.With("port", "leaderboard"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/players/{playerID}/stats",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/players/{playerID}/stats",
		ports.MakeGetPlayerStatsHandler(
			getPlayerStats,
			allowedOrigins,
			logger.With("port", "playerstats"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/players/{playerID}/weapons",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/players/{playerID}/weapons",
		ports.MakeGetWeaponMasteryHandler(
			getWeaponMastery,
			allowedOrigins,
			logger.With("port", "weapons"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/players",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"POST /v1/players",
		ports.MakeAddPlayerHandler(
			addPlayer,
			conf.AdminToken(),
			allowedOrigins,
			logger.With("port", "addplayer"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/players/{playerID}",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"DELETE /v1/players/{playerID}",
		ports.MakeDeactivatePlayerHandler(
			deactivatePlayer,
			conf.AdminToken(),
			allowedOrigins,
			logger.With("port", "deactivateplayer"),
			sentryMiddleware,
		),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", conf.Port()),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", "port", conf.Port())
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	})

	g.Go(func() error {
		return ingestionScheduler.Run(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.Info("Init complete")
	err = g.Wait()
	if err != nil {
		fail("Shutdown with error", "error", err.Error())
	}
	logger.Info("Server shutdown")
}
