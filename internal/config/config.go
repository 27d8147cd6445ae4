package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the whole application configuration,
// populated from environment variables
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	SMTP     SMTPConfig
	Courier  CourierConfig
	Job      JobConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Port        string
	Version     string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type SMTPConfig struct {
	Host string
	Port string
	From string
}

// CourierConfig configures the pickup provider client
type CourierConfig struct {
	Provider string // shipway, mock
	APIKey   string
	APIUrl   string
	Timeout  time.Duration
}

// JobConfig configures the background worker
type JobConfig struct {
	OpsEmail          string // recipient of the stale-pending digest
	StalePendingDays  int
	StalePendingCron  string // cron spec for the sweep scheduler
	WorkerConcurrency int
}

// Load reads config from environment variables
func Load() (*Config, error) {
	courierTimeout, err := time.ParseDuration(getEnv("COURIER_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid COURIER_TIMEOUT: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Returns API"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "returns"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 25),
			MinConns: getEnvInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		},
		SMTP: SMTPConfig{
			Host: getEnv("SMTP_HOST", "localhost"),
			Port: getEnv("SMTP_PORT", "1025"),
			From: getEnv("SMTP_FROM", "noreply@returns.dev"),
		},
		Courier: CourierConfig{
			Provider: getEnv("COURIER_PROVIDER", "mock"),
			APIKey:   getEnv("COURIER_API_KEY", ""),
			APIUrl:   getEnv("COURIER_API_URL", "https://api.shipway.dev"),
			Timeout:  courierTimeout,
		},
		Job: JobConfig{
			OpsEmail:          getEnv("JOB_OPS_EMAIL", "ops@returns.dev"),
			StalePendingDays:  getEnvInt("JOB_STALE_PENDING_DAYS", 3),
			StalePendingCron:  getEnv("JOB_STALE_PENDING_CRON", "0 8 * * *"),
			WorkerConcurrency: getEnvInt("JOB_WORKER_CONCURRENCY", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations that must not reach production
func (c *Config) Validate() error {
	if c.App.Environment == "production" {
		if c.JWT.Secret == "your-secret-key-change-in-production" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD must be set in production")
		}
		if c.Courier.Provider == "mock" {
			fmt.Println("WARNING: COURIER_PROVIDER is mock - pickups will not reach a real courier")
		}
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
