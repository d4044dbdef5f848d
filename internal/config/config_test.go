package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DB_DRIVER", "DATABASE_URL", "INVOICES_DIR", "RENDER_TIMEOUT", "INSTALLMENT_REMAINDER", "REDIS_DB", "MINIO_ENDPOINT", "REDIS_ADDR", "RENDER_LOCK_TTL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "billdesk.db", cfg.DatabaseURL)
	assert.Equal(t, "invoices", cfg.InvoicesDir)
	assert.Equal(t, 60*time.Second, cfg.RenderTimeout)
	assert.Equal(t, "drop", cfg.InstallmentRemainder)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://desk@localhost/billdesk?sslmode=disable")
	t.Setenv("RENDER_TIMEOUT", "15s")
	t.Setenv("INSTALLMENT_REMAINDER", "last")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("MINIO_SECURE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 15*time.Second, cfg.RenderTimeout)
	assert.Equal(t, "last", cfg.InstallmentRemainder)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.MinioSecure)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown driver", "DB_DRIVER", "mysql"},
		{"bad duration", "RENDER_TIMEOUT", "soon"},
		{"negative duration", "RENDER_TIMEOUT", "-1s"},
		{"unknown remainder policy", "INSTALLMENT_REMAINDER", "spread"},
		{"bad redis db", "REDIS_DB", "zero"},
		{"minio without credentials", "MINIO_ENDPOINT", "localhost:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MINIO_ACCESS_KEY", "")
			t.Setenv("MINIO_SECRET_KEY", "")
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRenderLockOutlivesRender(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("RENDER_TIMEOUT", "5m")
	t.Setenv("RENDER_LOCK_TTL", "")

	_, err := Load()
	assert.ErrorContains(t, err, "RENDER_LOCK_TTL")

	t.Setenv("RENDER_LOCK_TTL", "6m")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6*time.Minute, cfg.RenderLockTTL)

	// Without Redis there is no lock to outlive.
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("RENDER_LOCK_TTL", "")
	_, err = Load()
	assert.NoError(t, err)
}
