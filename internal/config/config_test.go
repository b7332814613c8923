package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "hotel.db", cfg.DatabaseURL)
	assert.Equal(t, "18", cfg.TaxFallbackRate.String())
	assert.Equal(t, time.Minute, cfg.TaxCacheTTL)
	assert.True(t, cfg.JobsEnabled)
	assert.Equal(t, "UTC", cfg.HotelLocation.String())
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("TAX_FALLBACK_RATE", "12.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("JOBS_ENABLED", "off")
	t.Setenv("HOTEL_TIMEZONE", "Asia/Kolkata")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "12.5", cfg.TaxFallbackRate.String())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.JobsEnabled)
	assert.Equal(t, "Asia/Kolkata", cfg.HotelLocation.String())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("TAX_FALLBACK_RATE", "150")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("TAX_FALLBACK_RATE", "18")
	t.Setenv("TAX_CACHE_TTL", "soon")
	_, err = Load()
	assert.Error(t, err)
}

func TestProdRequiresSecretAndPostgres(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "hotel.db")
	_, err = Load()
	assert.ErrorContains(t, err, "PostgreSQL")

	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/hotel")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProd())
}
