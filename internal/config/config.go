package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Sentinel Hub credentials and endpoints.
	SentinelClientID     string
	SentinelClientSecret string
	SentinelAuthURL      string
	SentinelProcessURL   string
	SentinelStatsURL     string
	SentinelTimeout      time.Duration

	// OpenWeatherMap configuration. Weather features are disabled when the
	// key is unset; the gateway still serves every other route.
	OpenWeatherKey     string
	OpenWeatherBaseURL string
	OpenWeatherTimeout time.Duration

	// lk-flood-api gauge feed.
	FloodAPIBaseURL string
	FloodAPITimeout time.Duration

	// Groq chat completions.
	GroqKey     string
	GroqBaseURL string
	GroqModel   string
	GroqTimeout time.Duration

	// Supabase REST (users + shelters datastore).
	SupabaseURL       string
	SupabaseSecretKey string
	SupabaseTimeout   time.Duration

	// Session tokens.
	JWTSecret     string
	JWTExpiration time.Duration

	// Caches.
	TileCacheSize    int
	TileCacheTTL     time.Duration
	WeatherCacheSize int
	WeatherCacheTTL  time.Duration
	TokenCacheTTL    time.Duration
	ReliefCacheTTL   time.Duration
	ReliefCSVPath    string

	// Rate limiting (per client IP, sliding window).
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Flood alert publishing (feature-flagged via KAFKA_BROKERS).
	KafkaBrokers     []string
	KafkaAlertsTopic string
	AlertsEnabled    bool

	// Monitored region bounding box.
	RegionWest  float64
	RegionSouth float64
	RegionEast  float64
	RegionNorth float64
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	sentinelTimeout, err := parseDuration("SENTINEL_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	weatherTimeout, err := parseDuration("OPENWEATHER_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	floodTimeout, err := parseDuration("FLOOD_API_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	groqTimeout, err := parseDuration("GROQ_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	supabaseTimeout, err := parseDuration("SUPABASE_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	jwtExpiration, err := parseDuration("JWT_EXPIRATION", "24h")
	if err != nil {
		return nil, err
	}
	tileTTL, err := parseDuration("TILE_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}
	weatherTTL, err := parseDuration("WEATHER_CACHE_TTL", "10m")
	if err != nil {
		return nil, err
	}
	// Sentinel Hub OAuth tokens live for one hour; expire ours a little early.
	tokenTTL, err := parseDuration("TOKEN_CACHE_TTL", "58m")
	if err != nil {
		return nil, err
	}
	reliefTTL, err := parseDuration("RELIEF_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}
	rateWindow, err := parseDuration("RATE_LIMIT_WINDOW", "1m")
	if err != nil {
		return nil, err
	}

	tileCacheSize, err := parsePositiveInt("TILE_CACHE_SIZE", 500)
	if err != nil {
		return nil, err
	}
	weatherCacheSize, err := parsePositiveInt("WEATHER_CACHE_SIZE", 100)
	if err != nil {
		return nil, err
	}
	rateRequests, err := parsePositiveInt("RATE_LIMIT_REQUESTS", 100)
	if err != nil {
		return nil, err
	}

	brokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8000"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		SentinelClientID:     os.Getenv("SENTINEL_CLIENT_ID"),
		SentinelClientSecret: os.Getenv("SENTINEL_CLIENT_SECRET"),
		SentinelAuthURL:      envOrDefault("SENTINEL_AUTH_URL", "https://services.sentinel-hub.com/auth/realms/main/protocol/openid-connect/token"),
		SentinelProcessURL:   envOrDefault("SENTINEL_PROCESS_URL", "https://services.sentinel-hub.com/api/v1/process"),
		SentinelStatsURL:     envOrDefault("SENTINEL_STATS_URL", "https://services.sentinel-hub.com/api/v1/statistics"),
		SentinelTimeout:      sentinelTimeout,

		OpenWeatherKey:     os.Getenv("OPENWEATHER_API_KEY"),
		OpenWeatherBaseURL: envOrDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org"),
		OpenWeatherTimeout: weatherTimeout,

		FloodAPIBaseURL: envOrDefault("FLOOD_API_URL", "https://lk-flood-api.vercel.app"),
		FloodAPITimeout: floodTimeout,

		GroqKey:     os.Getenv("GROQ_API_KEY"),
		GroqBaseURL: envOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GroqModel:   envOrDefault("GROQ_MODEL", "llama-3.3-70b-versatile"),
		GroqTimeout: groqTimeout,

		SupabaseURL:       os.Getenv("SUPABASE_URL"),
		SupabaseSecretKey: os.Getenv("SUPABASE_SECRET_KEY"),
		SupabaseTimeout:   supabaseTimeout,

		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTExpiration: jwtExpiration,

		TileCacheSize:    tileCacheSize,
		TileCacheTTL:     tileTTL,
		WeatherCacheSize: weatherCacheSize,
		WeatherCacheTTL:  weatherTTL,
		TokenCacheTTL:    tokenTTL,
		ReliefCacheTTL:   reliefTTL,
		ReliefCSVPath:    envOrDefault("RELIEF_CSV_PATH", "data/relief-directory.csv"),

		RateLimitRequests: rateRequests,
		RateLimitWindow:   rateWindow,

		KafkaBrokers:     brokers,
		KafkaAlertsTopic: envOrDefault("KAFKA_ALERTS_TOPIC", "flood-alerts"),
		AlertsEnabled:    len(brokers) > 0,

		// Sri Lanka bounding box [west, south, east, north].
		RegionWest:  parseFloat("REGION_WEST", 79.4),
		RegionSouth: parseFloat("REGION_SOUTH", 5.9),
		RegionEast:  parseFloat("REGION_EAST", 82.2),
		RegionNorth: parseFloat("REGION_NORTH", 10.1),
	}

	if v := os.Getenv("ALERTS_ENABLED"); v != "" {
		cfg.AlertsEnabled = v == "true"
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.SupabaseURL == "" {
		return nil, errors.New("SUPABASE_URL is required")
	}
	if cfg.SupabaseSecretKey == "" {
		return nil, errors.New("SUPABASE_SECRET_KEY is required")
	}
	if cfg.AlertsEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("ALERTS_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloat(key string, def float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return def
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
