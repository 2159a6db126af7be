package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is built once in main and handed to every collaborator. Core logic
// never reads the environment directly.
type Config struct {
	LedgerURL    string `validate:"required,url"`
	LedgerDB     string `validate:"required"`
	LedgerUser   string `validate:"required"`
	LedgerAPIKey string `validate:"required"`

	ClockURL      string `validate:"required,url"`
	ClockUsername string `validate:"required"`
	ClockPassword string `validate:"required"`

	DataDir    string `validate:"required"`
	StatusAddr string

	SyncInterval       time.Duration `validate:"gt=0"`
	DuplicateTolerance time.Duration `validate:"gt=0"`
	FuzzyThreshold     float64       `validate:"gte=0,lte=1"`
	StaleSessionAge    time.Duration `validate:"gt=0"`
	AssumedShift       time.Duration `validate:"gt=0"`
	MappingMaxAge      time.Duration `validate:"gt=0"`
}

const (
	defaultSyncIntervalMinutes = 10
	defaultToleranceMinutes    = 2
	defaultFuzzyThreshold      = 0.85
	defaultStaleSessionHours   = 24
	defaultAssumedShiftHours   = 8
	defaultMappingMaxAgeHours  = 24
)

// Load reads the environment into a Config and validates it. godotenv is
// expected to have populated the environment already (see cmd/pointage).
func Load() (Config, error) {
	cfg := Config{
		LedgerURL:    os.Getenv("ODOO_URL"),
		LedgerDB:     os.Getenv("ODOO_DB"),
		LedgerUser:   os.Getenv("ODOO_USER"),
		LedgerAPIKey: os.Getenv("ODOO_API_KEY"),

		ClockURL:      os.Getenv("ZK_BIOTIME_URL"),
		ClockUsername: os.Getenv("ZK_BIOTIME_USERNAME"),
		ClockPassword: os.Getenv("ZK_BIOTIME_PASSWORD"),

		DataDir:    envOr("DATA_DIR", "data"),
		StatusAddr: os.Getenv("STATUS_ADDR"),

		SyncInterval:       time.Duration(envInt("ZK_SYNC_INTERVAL_MINUTES", defaultSyncIntervalMinutes)) * time.Minute,
		DuplicateTolerance: time.Duration(envInt("SYNC_TOLERANCE_MINUTES", defaultToleranceMinutes)) * time.Minute,
		FuzzyThreshold:     envFloat("FUZZY_MATCH_THRESHOLD", defaultFuzzyThreshold),
		StaleSessionAge:    time.Duration(envInt("CLEANUP_MAX_AGE_HOURS", defaultStaleSessionHours)) * time.Hour,
		AssumedShift:       time.Duration(envInt("ASSUMED_SHIFT_HOURS", defaultAssumedShiftHours)) * time.Hour,
		MappingMaxAge:      time.Duration(envInt("MAPPING_MAX_AGE_HOURS", defaultMappingMaxAgeHours)) * time.Hour,
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
