package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

type AppConfig struct {
	// Location is a UK outward postcode or a two-letter country code.
	// May be empty: commits are still counted, just not classified.
	Location string

	// ElectricityMapsAPIKey is only required for country code lookups;
	// the core never persists it.
	ElectricityMapsAPIKey string

	// FetchInterval controls how often carbon data is refreshed.
	FetchInterval time.Duration `validate:"min=1m"`

	// In-memory history retention.
	StoreMaxHistory int           // max number of readings (0 = unlimited)
	StoreMaxAge     time.Duration // max age of readings (0 = unlimited)

	// GitRepoPath is the repository watched for commits.
	GitRepoPath string `validate:"required"`

	// StateFile holds commit stats and the last observed commit hash.
	StateFile string `validate:"required"`

	// CommitDebounce is the quiet period before a reflog change is
	// treated as a commit.
	CommitDebounce time.Duration

	HTTPTimeout time.Duration
	Port        string
	LogLevel    string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}
	cfg := &AppConfig{}

	cfg.Location = os.Getenv("CARBON_LOCATION")
	cfg.ElectricityMapsAPIKey = os.Getenv("ELECTRICITY_MAPS_API_KEY")

	// Refresh interval: default 30 minutes.
	interval, err := getenvDuration("FETCH_INTERVAL", "30m")
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_INTERVAL: %w", err)
	}
	cfg.FetchInterval = interval

	// History retention.
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96) // roughly 2 days at 30-minute intervals

	maxAge, err := getenvDuration("STORE_MAX_AGE", "48h")
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_MAX_AGE: %w", err)
	}
	cfg.StoreMaxAge = maxAge

	cfg.GitRepoPath = getenvDefault("GIT_REPO_PATH", ".")
	cfg.StateFile = getenvDefault("STATE_FILE", filepath.Join(cfg.GitRepoPath, ".carbon-aware-dev.json"))

	debounce, err := getenvDuration("COMMIT_DEBOUNCE", "500ms")
	if err != nil {
		return nil, fmt.Errorf("invalid COMMIT_DEBOUNCE: %w", err)
	}
	cfg.CommitDebounce = debounce

	timeout, err := getenvDuration("HTTP_TIMEOUT", "10s")
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
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

func getenvDuration(key, def string) (time.Duration, error) {
	return time.ParseDuration(getenvDefault(key, def))
}
