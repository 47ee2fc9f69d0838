// Package config loads the service configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"

	PolicyClamp  = "clamp"
	PolicyReject = "reject"
)

type Config struct {
	ServiceName string
	Env         string
	HTTPPort    string

	ShutdownTimeout time.Duration

	// StoreBackend selects the document store: memory or postgres.
	StoreBackend string
	// OversellPolicy selects checkout behavior when stock runs short:
	// clamp deducts what remains, reject fails the order.
	OversellPolicy string

	Postgres PostgresConfig
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName:     getenvDefault("SERVICE_NAME", "marketplace"),
		Env:             getenvDefault("ENV", "dev"),
		HTTPPort:        getenvDefault("APP_PORT", "8080"),
		ShutdownTimeout: 10 * time.Second,
		StoreBackend:    getenvDefault("STORE_BACKEND", BackendMemory),
		OversellPolicy:  getenvDefault("OVERSELL_POLICY", PolicyClamp),
		Postgres: PostgresConfig{
			Host:     getenvDefault("POSTGRES_HOST", "localhost"),
			Port:     getenvDefault("POSTGRES_PORT", "5432"),
			User:     getenvDefault("POSTGRES_USER", "postgres"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   getenvDefault("POSTGRES_DB", "marketplace"),
			SSLMode:  getenvDefault("POSTGRES_SSLMODE", "disable"),
		},
	}

	if raw := os.Getenv("SHUTDOWN_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("config: invalid SHUTDOWN_TIMEOUT %q: %w", raw, err)
		}
		cfg.ShutdownTimeout = d
	}

	switch cfg.StoreBackend {
	case BackendMemory, BackendPostgres:
	default:
		return nil, fmt.Errorf("config: unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	switch cfg.OversellPolicy {
	case PolicyClamp, PolicyReject:
	default:
		return nil, fmt.Errorf("config: unknown OVERSELL_POLICY %q", cfg.OversellPolicy)
	}

	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
