package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/likha-market/marketplace/internal/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "marketplace", cfg.ServiceName)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, config.BackendMemory, cfg.StoreBackend)
	assert.Equal(t, config.PolicyClamp, cfg.OversellPolicy)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("OVERSELL_POLICY", "reject")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PASSWORD", "secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, config.BackendPostgres, cfg.StoreBackend)
	assert.Equal(t, config.PolicyReject, cfg.OversellPolicy)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Contains(t, cfg.Postgres.DSN(), "host=db.internal")
	assert.Contains(t, cfg.Postgres.DSN(), "password=secret")
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("STORE_BACKEND", "redis")
	_, err := config.Load()
	assert.Error(t, err)

	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("OVERSELL_POLICY", "panic")
	_, err = config.Load()
	assert.Error(t, err)

	t.Setenv("OVERSELL_POLICY", "clamp")
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err = config.Load()
	assert.Error(t, err)
}
