package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kalder/weather-staging/internal/wx/filter"
)

// AppConfig holds everything the pipeline reads from the environment.
// Credentials are optionally pre-populated from a local .env file at startup
// (see cmd), which never overrides an already-set environment value.
type AppConfig struct {
	AccuWeatherAPIKey string
	GeocoderAPIKey    string

	// RegistryPath points at a JSON location registry; empty uses the
	// embedded defaults.
	RegistryPath string

	// OutputDir is the staging root for partitioned parquet files.
	OutputDir string `validate:"required"`

	// FetchInterval controls how often a collection run is scheduled.
	FetchInterval time.Duration `validate:"min=1m"`

	// Parallelism bounds the per-location worker pool; 1 means sequential.
	Parallelism int `validate:"min=1"`

	// HTTPTimeout applies to every outbound provider call.
	HTTPTimeout time.Duration `validate:"min=1s"`

	// CacheTTL controls the multi-model response cache; 0 disables it.
	CacheTTL time.Duration

	// ForecastDays is the horizon requested from the multi-model provider.
	ForecastDays int `validate:"min=1,max=16"`

	// Exclusions is the injectable business-exclusion rule for the
	// forecast filter.
	Exclusions filter.Exclusions

	// Run-history retention for the status API.
	StoreMaxHistory int
	StoreMaxAge     time.Duration

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.AccuWeatherAPIKey = os.Getenv("ACCUWEATHER_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")
	cfg.RegistryPath = os.Getenv("LOCATION_REGISTRY_PATH")
	cfg.OutputDir = getenvDefault("STAGING_OUTPUT_DIR", "data/staging")

	interval, err := time.ParseDuration(getenvDefault("FETCH_INTERVAL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_INTERVAL: %w", err)
	}
	cfg.FetchInterval = interval

	cfg.Parallelism = getenvInt("FETCH_PARALLELISM", 4)

	timeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cacheTTL, err := time.ParseDuration(getenvDefault("RESPONSE_CACHE_TTL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid RESPONSE_CACHE_TTL: %w", err)
	}
	cfg.CacheTTL = cacheTTL

	cfg.ForecastDays = getenvInt("FORECAST_DAYS", 3)

	cfg.Exclusions = filter.Exclusions{
		Locations: splitList(os.Getenv("EXCLUDE_LOCATIONS")),
		Models:    splitList(os.Getenv("EXCLUDE_MODELS")),
	}

	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96)
	maxAge, err := time.ParseDuration(getenvDefault("STORE_MAX_AGE", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_MAX_AGE: %w", err)
	}
	cfg.StoreMaxAge = maxAge

	cfg.Port = getenvDefault("PORT", "8080")

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
