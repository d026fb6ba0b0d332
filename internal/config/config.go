// Package config loads Arcana's runtime configuration: database
// connection parameters, pipeline defaults, and the declarative list of
// bar specs `bars build-all` builds.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is Arcana's full runtime configuration (§6).
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Pipeline PipelineConfig
	Bars     []BarConfig `yaml:"bars"`
}

// DatabaseConfig holds the Postgres/TimescaleDB connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// RedisConfig holds the optional calibration-cache connection. A blank
// Host disables the cache entirely; a reachable one that fails to
// connect at startup is also tolerated (§6's "optional accelerator").
type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

// PipelineConfig holds backfill/daemon defaults.
type PipelineConfig struct {
	DefaultPair    string
	DefaultSource  string
	BatchSize      int
	RateDelay      time.Duration
	DaemonInterval time.Duration
	TradeBatch     int
	BarsPerDay     int
}

// BarConfig is one entry of the declarative `bars:` list `bars build-all`
// builds every enabled spec from (§6's configuration surface). Enabled is
// a pointer so an omitted field defaults to true, matching the original
// BarSpecConfig's default, rather than YAML's bool zero value of false.
type BarConfig struct {
	Spec                    string   `yaml:"spec"`
	Enabled                 *bool    `yaml:"enabled"`
	BarsPerDayOverride      int      `yaml:"bars_per_day_override"`
	InitialExpectedOverride *float64 `yaml:"initial_expected_override"`
}

// IsEnabled reports whether this entry should be built, defaulting to
// true when the YAML omits the enabled field entirely.
func (b BarConfig) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// Load reads configuration from environment variables — after loading a
// .env file if one is present, the same precedence the teacher uses —
// and, if barsConfigPath is non-empty, merges in the YAML `bars:` list.
func Load(barsConfigPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using environment variables")
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("ARCANA_DB_HOST", "localhost"),
			Port:     getEnvInt("ARCANA_DB_PORT", 5432),
			Database: getEnvOrDefault("ARCANA_DB_NAME", "arcana"),
			User:     getEnvOrDefault("ARCANA_DB_USER", "arcana"),
			Password: getEnvOrDefault("ARCANA_DB_PASSWORD", ""),
			SSLMode:  getEnvOrDefault("ARCANA_DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnvOrDefault("ARCANA_REDIS_HOST", ""),
			Port:     getEnvInt("ARCANA_REDIS_PORT", 6379),
			Password: getEnvOrDefault("ARCANA_REDIS_PASSWORD", ""),
		},
		Pipeline: PipelineConfig{
			DefaultPair:    getEnvOrDefault("ARCANA_DEFAULT_PAIR", "ETH-USD"),
			DefaultSource:  getEnvOrDefault("ARCANA_DEFAULT_SOURCE", "coinbase"),
			BatchSize:      getEnvInt("ARCANA_BATCH_SIZE", 1000),
			RateDelay:      getEnvDuration("ARCANA_RATE_DELAY", 120*time.Millisecond),
			DaemonInterval: getEnvDuration("ARCANA_DAEMON_INTERVAL", 15*time.Minute),
			TradeBatch:     getEnvInt("ARCANA_TRADE_BATCH", 100_000),
			BarsPerDay:     getEnvInt("ARCANA_BARS_PER_DAY", 50),
		},
	}

	if barsConfigPath != "" {
		bars, err := loadBarsConfig(barsConfigPath)
		if err != nil {
			return nil, fmt.Errorf("config: load bars config %s: %w", barsConfigPath, err)
		}
		cfg.Bars = bars
	}

	return cfg, nil
}

func loadBarsConfig(path string) ([]BarConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Bars []BarConfig `yaml:"bars"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return doc.Bars, nil
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
