// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	matchCfg := cfg.Matching.ToMatchingConfig()
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/receiptwise/receiptmatch-backend/internal/domain/matching"
)

// Config represents the entire application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Matching      MatchingConfig      `yaml:"matching"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// MatchingConfig holds scoring profile selection and per-field overrides.
// Overrides only apply when set to a non-zero value.
type MatchingConfig struct {
	Profile                string  `yaml:"profile"` // default, strict, relaxed
	MinProposalScore       float64 `yaml:"min_proposal_score"`
	AmountTolerancePercent float64 `yaml:"amount_tolerance_percent"`
	DateWindowDays         int     `yaml:"date_window_days"`
	AmbiguityDelta         float64 `yaml:"ambiguity_delta"`
}

// ScheduleConfig holds the background auto-match schedule
type ScheduleConfig struct {
	Enabled       bool   `yaml:"enabled"`
	AutoMatchCron string `yaml:"auto_match_cron"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ToMatchingConfig resolves the named profile and applies overrides.
func (m MatchingConfig) ToMatchingConfig() (matching.Config, error) {
	var cfg matching.Config
	switch strings.ToLower(m.Profile) {
	case "", "default":
		cfg = matching.DefaultConfig()
	case "strict":
		cfg = matching.StrictConfig()
	case "relaxed":
		cfg = matching.RelaxedConfig()
	default:
		return matching.Config{}, fmt.Errorf("unknown matching profile %q", m.Profile)
	}

	if m.MinProposalScore > 0 {
		cfg.MinProposalScore = m.MinProposalScore
	}
	if m.AmountTolerancePercent > 0 {
		cfg.AmountTolerancePercent = m.AmountTolerancePercent
	}
	if m.DateWindowDays > 0 {
		cfg.DateWindowDays = m.DateWindowDays
		if cfg.TravelDateWindowDays < m.DateWindowDays {
			cfg.TravelDateWindowDays = m.DateWindowDays
		}
	}
	if m.AmbiguityDelta > 0 {
		cfg.AmbiguityDelta = m.AmbiguityDelta
	}

	if err := cfg.Validate(); err != nil {
		return matching.Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${RECEIPTMATCH_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvInt("RECEIPTMATCH_PORT", 8080),
			AllowedOrigins: splitList(getEnv("RECEIPTMATCH_ALLOWED_ORIGINS", "*")),
		},
		Storage: StorageConfig{
			DatabasePath: getEnv("RECEIPTMATCH_DB_PATH", "receiptmatch.db"),
		},
		Matching: MatchingConfig{
			Profile: getEnv("RECEIPTMATCH_MATCHING_PROFILE", "default"),
		},
		Schedule: ScheduleConfig{
			Enabled:       getEnv("RECEIPTMATCH_SCHEDULE_ENABLED", "") == "true",
			AutoMatchCron: getEnv("RECEIPTMATCH_AUTOMATCH_CRON", "0 3 * * *"),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "receiptmatch.db"
	}
	if cfg.Schedule.AutoMatchCron == "" {
		cfg.Schedule.AutoMatchCron = "0 3 * * *"
	}
	if cfg.Observability.Logging.Level == "" {
		cfg.Observability.Logging.Level = "info"
	}
	if cfg.Observability.Logging.Format == "" {
		cfg.Observability.Logging.Format = "text"
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
