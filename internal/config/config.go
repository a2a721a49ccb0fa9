package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Harvest  HarvestConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type HarvestConfig struct {
	MaxProducts int
	Workers     int
	RunDeadline time.Duration
	URLTimeout  time.Duration
	SitesFile   string
	ResultsFile string
}

type BrowserConfig struct {
	Headless    bool
	ProxyServer string
}

// DatabaseConfig is optional: persistence is enabled only when DB_HOST is
// set. One-shot CLI runs fall back to the JSON result store.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) Enabled() bool { return d.Host != "" }

// RedisConfig is optional: events are published only when REDIS_ADDR is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Harvest: HarvestConfig{
			MaxProducts: getIntOrDefault("HARVEST_MAX_PRODUCTS", 50),
			Workers:     getIntOrDefault("HARVEST_WORKERS", 2),
			RunDeadline: getDurationOrDefault("HARVEST_RUN_DEADLINE", 30*time.Minute),
			URLTimeout:  getDurationOrDefault("HARVEST_URL_TIMEOUT", 5*time.Minute),
			SitesFile:   getEnvOrDefault("HARVEST_SITES_FILE", ""),
			ResultsFile: getEnvOrDefault("HARVEST_RESULTS_FILE", "results.json"),
		},
		Browser: BrowserConfig{
			Headless:    getBoolOrDefault("BROWSER_HEADLESS", true),
			ProxyServer: getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", ""),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "beautyharvest"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", ""),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Harvest.Workers < 1 {
		return fmt.Errorf("HARVEST_WORKERS must be at least 1")
	}
	if c.Harvest.MaxProducts < 1 {
		return fmt.Errorf("HARVEST_MAX_PRODUCTS must be at least 1")
	}
	if c.Database.Enabled() && c.Database.Port < 1 {
		return fmt.Errorf("DB_PORT must be a valid port")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
