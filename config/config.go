package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// Tick source and bar sink backends.
const (
	BackendParquet = "parquet"
	BackendSQLite  = "sqlite"
)

// Config holds the infrastructure configuration loaded from environment
// variables. Run parameters come from command-line flags.
type Config struct {
	// Cache store
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Tick and bar stores
	SQLitePath string
	ParquetDir string
	TickSource string // parquet | sqlite
	BarSink    string // sqlite | parquet

	// Empty disables the metrics and API server.
	MetricsAddr string

	LogFormat string // text | json
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		SQLitePath: getEnv("SQLITE_PATH", "data/bars.db"),
		ParquetDir: getEnv("PARQUET_DIR", "data/parquet"),
		TickSource: strings.ToLower(getEnv("TICK_SOURCE", BackendParquet)),
		BarSink:    strings.ToLower(getEnv("BAR_SINK", BackendSQLite)),

		MetricsAddr: os.Getenv("METRICS_ADDR"),
		LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for name, v := range map[string]string{"TICK_SOURCE": c.TickSource, "BAR_SINK": c.BarSink} {
		if v != BackendParquet && v != BackendSQLite {
			return fmt.Errorf("config: %s must be %q or %q, got %q", name, BackendParquet, BackendSQLite, v)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
