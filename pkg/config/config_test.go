package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OUTREACH_DATABASE_DSN", "outreach:secret@tcp(localhost:3306)/outreach")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.HTTPAddress)
	assert.Equal(t, ":9090", c.GRPCAddress)
	assert.Equal(t, ProviderLog, c.Provider.Mode)
	assert.Equal(t, "972", c.Provider.CountryCode)
	assert.Equal(t, 8, c.DispatchWorkers)
	assert.Equal(t, 5*time.Minute, c.StatsCacheTTL)
	assert.Equal(t, logrus.InfoLevel, c.Level())
	assert.Empty(t, c.RedisURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OUTREACH_DATABASE_DSN", "dsn")
	t.Setenv("OUTREACH_PROVIDER_MODE", "http")
	t.Setenv("OUTREACH_PROVIDER_URL", "https://sms.example.com/send")
	t.Setenv("OUTREACH_PROVIDER_RATE_PER_SECOND", "2.5")
	t.Setenv("OUTREACH_DISPATCH_WORKERS", "3")
	t.Setenv("OUTREACH_LOG_LEVEL", "debug")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://sms.example.com/send", c.Provider.URL)
	assert.Equal(t, 2.5, c.Provider.RatePerSec)
	assert.Equal(t, 3, c.DispatchWorkers)
	assert.Equal(t, logrus.DebugLevel, c.Level())
}

func TestLoadErrors(t *testing.T) {
	t.Run("Missing DSN", func(t *testing.T) {
		t.Setenv("OUTREACH_DATABASE_DSN", "")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("HTTP provider without URL", func(t *testing.T) {
		t.Setenv("OUTREACH_DATABASE_DSN", "dsn")
		t.Setenv("OUTREACH_PROVIDER_MODE", "http")
		_, err := Load()
		assert.ErrorContains(t, err, "OUTREACH_PROVIDER_URL")
	})

	t.Run("Unknown provider", func(t *testing.T) {
		t.Setenv("OUTREACH_DATABASE_DSN", "dsn")
		t.Setenv("OUTREACH_PROVIDER_MODE", "carrier-pigeon")
		_, err := Load()
		assert.ErrorContains(t, err, "unknown provider mode")
	})
}
