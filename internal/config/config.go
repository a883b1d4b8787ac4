package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime knobs. Fuel data (coefficients, categories,
// scale factors, losses) lives in the YAML file named by FuelsPath and
// is loaded separately via LoadFuels.
type Config struct {
	Port     int
	LogLevel string
	DevMode  bool

	// Data files
	DataDir   string // intensity log + snapshot cache
	FuelsPath string

	// Feed endpoints
	LegacyFeedURL string
	StreamFeedURL string
	FeedLabel     string // expected dataset label in the legacy header
	FetchTimeout  time.Duration

	// Schedules (six-field cron specs, seconds first)
	PollSchedule  string
	StatsSchedule string

	// Pipeline tuning
	RollingWindowSize int           // samples used for status thresholds
	CorrelationWindow int           // samples used by the daily stats job
	HistoryRetention  int           // snapshots kept in memory
	StalenessMaxAge   time.Duration // newest data older than this caps status
	MinNotifyInterval time.Duration // hysteresis floor between notifications
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnvAsInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		DataDir:   getEnv("DATA_DIR", "./data"),
		FuelsPath: getEnv("FUELS_PATH", "./config/fuels.yaml"),

		LegacyFeedURL: getEnv("LEGACY_FEED_URL", "https://www.bmreports.com/bsp/additional/soapfunctions.php?element=generationbyfueltypetable"),
		StreamFeedURL: getEnv("STREAM_FEED_URL", "https://data.elexon.co.uk/bmrs/api/v1/datasets/FUELINST/stream"),
		FeedLabel:     getEnv("FEED_LABEL", "FUELINST"),
		FetchTimeout:  getEnvAsDuration("FETCH_TIMEOUT", 30*time.Second),

		PollSchedule:  getEnv("POLL_SCHEDULE", "0 */5 * * * *"),
		StatsSchedule: getEnv("STATS_SCHEDULE", "0 30 0 * * *"),

		RollingWindowSize: getEnvAsInt("ROLLING_WINDOW_SIZE", 288), // 24h of 5-minute cycles
		CorrelationWindow: getEnvAsInt("CORRELATION_WINDOW", 288),
		HistoryRetention:  getEnvAsInt("HISTORY_RETENTION", 4032), // two weeks
		StalenessMaxAge:   getEnvAsDuration("STALENESS_MAX_AGE", 30*time.Minute),
		MinNotifyInterval: getEnvAsDuration("MIN_NOTIFY_INTERVAL", 20*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.FuelsPath == "" {
		return fmt.Errorf("FUELS_PATH is required")
	}
	if c.LegacyFeedURL == "" && c.StreamFeedURL == "" {
		return fmt.Errorf("at least one of LEGACY_FEED_URL, STREAM_FEED_URL is required")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	if c.RollingWindowSize < 1 {
		return fmt.Errorf("ROLLING_WINDOW_SIZE must be at least 1")
	}
	if c.CorrelationWindow < 2 {
		return fmt.Errorf("CORRELATION_WINDOW must be at least 2")
	}
	if c.HistoryRetention < c.RollingWindowSize {
		return fmt.Errorf("HISTORY_RETENTION must cover the rolling window")
	}
	if c.StalenessMaxAge <= 0 {
		return fmt.Errorf("STALENESS_MAX_AGE must be positive")
	}
	if c.MinNotifyInterval < 0 {
		return fmt.Errorf("MIN_NOTIFY_INTERVAL cannot be negative")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
