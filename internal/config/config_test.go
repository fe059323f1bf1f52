package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigSQLite(t *testing.T) {
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/gator.db")
	t.Setenv("PORT", "9090")
	t.Setenv("REQUEST_TIMEOUT", "2s")
	t.Setenv("PAGE_SIZE_DEFAULT", "10")
	t.Setenv("PAGE_SIZE_MAX", "")
	t.Setenv("ENV", "development")
	t.Setenv("JWT_SECRET", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "/tmp/gator.db", cfg.Database.URI)
	assert.Equal(t, 10, cfg.Paging.DefaultSize)
	assert.Equal(t, 100, cfg.Paging.MaxSize)
	assert.NotEmpty(t, cfg.JWTSecret, "development falls back to a local secret")
}

func TestLoadConfigPostgresFromParts(t *testing.T) {
	t.Setenv("DB_TYPE", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "gator")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "social")
	t.Setenv("DB_SSL_MODE", "disable")
	t.Setenv("JWT_SECRET", "s3cr3t")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgresql://gator:secret@db:5432/social?sslmode=disable", cfg.Database.URI)
}

func TestLoadConfigRejectsMissingSecretInProduction(t *testing.T) {
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestGetSSLModeFromURI(t *testing.T) {
	assert.Equal(t, "disable", getSSLModeFromURI("postgres://u:p@h/db?sslmode=disable"))
	assert.Equal(t, "require", getSSLModeFromURI("postgres://u:p@h/db"))
}
