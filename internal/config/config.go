package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pochinki/pochinki/internal/domain"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type CacheBackend string

const (
	CacheBackendMemory   CacheBackend = "memory"
	CacheBackendPostgres CacheBackend = "postgres"
	CacheBackendRedis    CacheBackend = "redis"
)

// Per-endpoint-class cache TTLs
type CacheTTLs struct {
	Seasons       time.Duration
	PlayerStats   time.Duration
	WeaponMastery time.Duration
	Leaderboards  time.Duration
	LifetimeStats time.Duration
	PlayerLookup  time.Duration
}

func DefaultCacheTTLs() CacheTTLs {
	return CacheTTLs{
		Seasons:       24 * time.Hour,
		PlayerStats:   1 * time.Hour,
		WeaponMastery: 6 * time.Hour,
		Leaderboards:  2 * time.Hour,
		LifetimeStats: 12 * time.Hour,
		PlayerLookup:  1 * time.Hour,
	}
}

type Config struct {
	dBHost         string
	dBPassword     string
	dBUsername     string
	sentryDSN      string
	pubgAPIKey     string
	pubgShard      string
	pubgBaseURL    string
	adminToken     string
	apiRateLimit   int
	apiRateWindow  time.Duration
	cacheBackend   CacheBackend
	redisURL       string
	cacheTTLs      CacheTTLs
	updateInterval time.Duration
	playerDelay    time.Duration
	gameMode       domain.GameMode
	port           string
	allowedOrigins []string
	gcpProject     string
	otelEnabled    bool
	env            environment
}

func (c *Config) DBHost() string {
	return c.dBHost
}

func (c *Config) DBPassword() string {
	return c.dBPassword
}

func (c *Config) DBUsername() string {
	return c.dBUsername
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) PUBGAPIKey() string {
	return c.pubgAPIKey
}

func (c *Config) PUBGShard() string {
	return c.pubgShard
}

func (c *Config) PUBGBaseURL() string {
	return c.pubgBaseURL
}

func (c *Config) AdminToken() string {
	return c.adminToken
}

// Maximum number of upstream calls admitted per APIRateWindow
func (c *Config) APIRateLimit() int {
	return c.apiRateLimit
}

func (c *Config) APIRateWindow() time.Duration {
	return c.apiRateWindow
}

func (c *Config) CacheBackend() CacheBackend {
	return c.cacheBackend
}

func (c *Config) RedisURL() string {
	return c.redisURL
}

func (c *Config) CacheTTLs() CacheTTLs {
	return c.cacheTTLs
}

func (c *Config) UpdateInterval() time.Duration {
	return c.updateInterval
}

func (c *Config) PlayerDelay() time.Duration {
	return c.playerDelay
}

// Game mode fetched by the batch season stats step
func (c *Config) GameMode() domain.GameMode {
	return c.gameMode
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) AllowedOrigins() []string {
	return c.allowedOrigins
}

func (c *Config) GCPProject() string {
	return c.gcpProject
}

func (c *Config) OTELEnabled() bool {
	return c.otelEnabled
}

func (c *Config) Environment() string {
	return string(c.env)
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, shard: %s, cacheBackend: %s, apiRateLimit: %d/%s, updateInterval: %s, ...}",
		string(c.env),
		c.pubgShard,
		string(c.cacheBackend),
		c.apiRateLimit,
		c.apiRateWindow,
		c.updateInterval,
	)
}

// LoadDotEnv loads variables from a .env file into the environment, if the file exists.
// Variables that are already set take precedence.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, filename := range filenames {
		if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(filename); err != nil {
			return fmt.Errorf("failed to load %s: %w", filename, err)
		}
	}
	return nil
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}
	invalidValue := func(key, value string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, value)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("POCHINKI_ENVIRONMENT")
	if !ok {
		return missingKey("POCHINKI_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return invalidValue("POCHINKI_ENVIRONMENT", rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	dbHost := os.Getenv("DB_HOST")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbUsername := os.Getenv("DB_USERNAME")
	sentryDSN := os.Getenv("SENTRY_DSN")
	pubgAPIKey := os.Getenv("PUBG_API_KEY")
	adminToken := os.Getenv("ADMIN_TOKEN")

	if env == production || env == staging {
		required := []struct {
			key   string
			value string
		}{
			{"DB_HOST", dbHost},
			{"DB_USERNAME", dbUsername},
			{"DB_PASSWORD", dbPassword},
			{"SENTRY_DSN", sentryDSN},
			{"PUBG_API_KEY", pubgAPIKey},
			{"ADMIN_TOKEN", adminToken},
		}
		for _, r := range required {
			if r.value == "" {
				return missingKey(r.key)
			}
		}
	}

	pubgShard := getEnv("PUBG_SHARD", "steam")
	if !domain.IsValidPlatform(pubgShard) {
		return invalidValue("PUBG_SHARD", pubgShard)
	}

	pubgBaseURL := strings.TrimRight(getEnv("PUBG_BASE_URL", "https://api.pubg.com"), "/")

	apiRateLimit, err := getPositiveInt("API_RATE_LIMIT", 10)
	if err != nil {
		return Config{}, err
	}
	apiRateWindow, err := getSeconds("API_RATE_WINDOW_SECONDS", 60*time.Second)
	if err != nil {
		return Config{}, err
	}

	defaultCacheBackend := CacheBackendPostgres
	if env == development {
		defaultCacheBackend = CacheBackendMemory
	}
	cacheBackend := CacheBackend(getEnv("CACHE_BACKEND", string(defaultCacheBackend)))
	switch cacheBackend {
	case CacheBackendMemory, CacheBackendPostgres:
	case CacheBackendRedis:
		if os.Getenv("REDIS_URL") == "" {
			return missingKey("REDIS_URL")
		}
	default:
		return invalidValue("CACHE_BACKEND", string(cacheBackend))
	}

	cacheTTLs := DefaultCacheTTLs()
	ttlOverrides := []struct {
		key string
		ttl *time.Duration
	}{
		{"CACHE_TTL_SEASONS", &cacheTTLs.Seasons},
		{"CACHE_TTL_PLAYER_STATS", &cacheTTLs.PlayerStats},
		{"CACHE_TTL_WEAPON_MASTERY", &cacheTTLs.WeaponMastery},
		{"CACHE_TTL_LEADERBOARDS", &cacheTTLs.Leaderboards},
		{"CACHE_TTL_LIFETIME_STATS", &cacheTTLs.LifetimeStats},
		{"CACHE_TTL_PLAYER_LOOKUP", &cacheTTLs.PlayerLookup},
	}
	for _, override := range ttlOverrides {
		ttl, err := getSeconds(override.key, *override.ttl)
		if err != nil {
			return Config{}, err
		}
		*override.ttl = ttl
	}

	updateInterval, err := getSeconds("UPDATE_INTERVAL_SECONDS", 60*time.Second)
	if err != nil {
		return Config{}, err
	}
	playerDelay, err := getSeconds("PLAYER_DELAY_SECONDS", 6*time.Second)
	if err != nil {
		return Config{}, err
	}

	gameMode := domain.GameMode(getEnv("GAME_MODE", string(domain.GameModeSquadFPP)))
	if !gameMode.IsValid() || gameMode == domain.GameModeAll {
		return invalidValue("GAME_MODE", string(gameMode))
	}

	port := getEnv("PORT", "8080")
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return invalidValue("PORT", port)
	}

	var allowedOrigins []string
	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins = append(allowedOrigins, origin)
		}
	}

	otelEnabled := false
	if rawOTEL := os.Getenv("OTEL_ENABLED"); rawOTEL != "" {
		otelEnabled, err = strconv.ParseBool(rawOTEL)
		if err != nil {
			return invalidValue("OTEL_ENABLED", rawOTEL)
		}
	}

	return Config{
		dBHost:         dbHost,
		dBPassword:     dbPassword,
		dBUsername:     dbUsername,
		sentryDSN:      sentryDSN,
		pubgAPIKey:     pubgAPIKey,
		pubgShard:      pubgShard,
		pubgBaseURL:    pubgBaseURL,
		adminToken:     adminToken,
		apiRateLimit:   apiRateLimit,
		apiRateWindow:  apiRateWindow,
		cacheBackend:   cacheBackend,
		redisURL:       os.Getenv("REDIS_URL"),
		cacheTTLs:      cacheTTLs,
		updateInterval: updateInterval,
		playerDelay:    playerDelay,
		gameMode:       gameMode,
		port:           port,
		allowedOrigins: allowedOrigins,
		gcpProject:     os.Getenv("GCP_PROJECT"),
		otelEnabled:    otelEnabled,
		env:            env,
	}, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getPositiveInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, raw)
	}
	return value, nil
}

func getSeconds(key string, fallback time.Duration) (time.Duration, error) {
	seconds, err := getPositiveInt(key, int(fallback/time.Second))
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}
