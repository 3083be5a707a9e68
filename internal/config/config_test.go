package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.HTTPPort)
	assert.Equal(t, "json", cfg.Server.LogFormat)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 25, cfg.Database.MaxConnections)
	assert.False(t, cfg.Import.UseFirstSeen)
	assert.Equal(t, int64(64<<20), cfg.Import.MaxUploadBytes)
	assert.False(t, cfg.Workers.InboxEnabled)
	assert.Equal(t, 30*time.Second, cfg.Workers.SweepInterval)
	assert.True(t, cfg.Workers.CleanerEnabled)
	assert.Equal(t, 90*24*time.Hour, cfg.Workers.Retention)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("USE_FIRST_SEEN", "true")
	t.Setenv("INBOX_ENABLED", "true")
	t.Setenv("INBOX_DIR", "/tmp/inbox")
	t.Setenv("INBOX_SWEEP_INTERVAL", "5m")
	t.Setenv("IMPORT_RETENTION", "720h")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.HTTPPort)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.True(t, cfg.Import.UseFirstSeen)
	assert.True(t, cfg.Workers.InboxEnabled)
	assert.Equal(t, "/tmp/inbox", cfg.Workers.InboxDir)
	assert.Equal(t, 5*time.Minute, cfg.Workers.SweepInterval)
	assert.Equal(t, 720*time.Hour, cfg.Workers.Retention)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Database: DatabaseConfig{Host: "localhost", User: "u", Database: "d"},
			Workers: WorkersConfig{
				SweepInterval:  time.Second,
				CleanerEnabled: true,
				Retention:      time.Hour,
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("missing db host", func(t *testing.T) {
		cfg := base()
		cfg.Database.Host = ""
		assert.ErrorContains(t, cfg.Validate(), "DB_HOST")
	})

	t.Run("inbox enabled without dir", func(t *testing.T) {
		cfg := base()
		cfg.Workers.InboxEnabled = true
		assert.ErrorContains(t, cfg.Validate(), "INBOX_DIR")
	})

	t.Run("cleaner without retention", func(t *testing.T) {
		cfg := base()
		cfg.Workers.Retention = 0
		assert.ErrorContains(t, cfg.Validate(), "IMPORT_RETENTION")
	})
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{
		Host: "localhost", Port: "5432",
		User: "vulnfeed", Password: "secret",
		Database: "findings", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=vulnfeed password=secret dbname=findings sslmode=disable",
		db.DSN())
}
