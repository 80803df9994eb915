// Package config reads server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Port          string
	AllowedOrigin string

	StoreBackend      string // sqlite, memory, file or firestore
	DatabasePath      string
	DataDir           string
	GCPProjectID      string
	FirestoreDatabase string
	QueryTimeout      time.Duration

	PasswordMode           string // plain or bcrypt
	ManagementSecret       string // empty means generate one at startup
	ManagementTokenTTL     time.Duration
	RequireManagementToken bool

	LogLevel  zerolog.Level
	LogFormat string // json or console
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}

// Load reads the environment, applying defaults for anything unset.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		AllowedOrigin:     getenv("CORS_ORIGIN", "http://localhost:5173"),
		StoreBackend:      getenv("STORE_BACKEND", "sqlite"),
		DatabasePath:      getenv("DATABASE_PATH", "tournaments.db"),
		DataDir:           getenv("DATA_DIR", "./data"),
		GCPProjectID:      os.Getenv("GCP_PROJECT_ID"),
		FirestoreDatabase: os.Getenv("FIRESTORE_DATABASE"),
		PasswordMode:      getenv("PASSWORD_MODE", "plain"),
		ManagementSecret:  os.Getenv("MANAGEMENT_SECRET"),
		LogFormat:         getenv("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.QueryTimeout, err = duration("QUERY_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ManagementTokenTTL, err = duration("MANAGEMENT_TOKEN_TTL", 12*time.Hour); err != nil {
		return Config{}, err
	}
	if raw := os.Getenv("REQUIRE_MANAGEMENT_TOKEN"); raw != "" {
		if cfg.RequireManagementToken, err = strconv.ParseBool(raw); err != nil {
			return Config{}, fmt.Errorf("REQUIRE_MANAGEMENT_TOKEN: %w", err)
		}
	}
	if cfg.LogLevel, err = zerolog.ParseLevel(getenv("LOG_LEVEL", "info")); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	switch cfg.StoreBackend {
	case "sqlite", "memory", "file":
	case "firestore":
		if cfg.GCPProjectID == "" {
			return Config{}, fmt.Errorf("GCP_PROJECT_ID is required for the firestore backend")
		}
	default:
		return Config{}, fmt.Errorf("STORE_BACKEND: unknown backend %q", cfg.StoreBackend)
	}
	switch cfg.PasswordMode {
	case "plain", "bcrypt":
	default:
		return Config{}, fmt.Errorf("PASSWORD_MODE: unknown mode %q", cfg.PasswordMode)
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		return Config{}, fmt.Errorf("LOG_FORMAT: unknown format %q", cfg.LogFormat)
	}
	return cfg, nil
}
