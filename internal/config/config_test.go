package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_SQLiteDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("JWT_SECRET", "test-secret-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "./database.sqlite", cfg.DBPath)
	assert.Equal(t, 24*time.Hour, cfg.AccessTTL)
	assert.Equal(t, "file", cfg.Audit.Sink)
	assert.Equal(t, "audit_log.jsonl", cfg.Audit.LogPath)
	assert.Equal(t, "audit.events", cfg.Audit.AMQPQueue)
	assert.Equal(t, 1024, cfg.Audit.QueueSize)
}

func TestLoad_ReportsEveryMissingVar(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_NAME", "")

	_, err := Load()
	require.Error(t, err)
	for _, key := range []string{"JWT_SECRET", "DB_USER", "DB_HOST", "DB_PORT", "DB_NAME"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "soon")
	t.Setenv("AUDIT_SINK", "kafka")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DRIVER")
	assert.Contains(t, err.Error(), "ACCESS_TOKEN_TTL_MIN")
	assert.Contains(t, err.Error(), "AUDIT_SINK")
}

func TestLoad_AMQPURLFallback(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://u:p@broker:5672/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "amqp://u:p@broker:5672/", cfg.Audit.AMQPURL)
}

func TestLoadRateLimitConfig_Normalizes(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "10s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_BURST", "3")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 3, cfg.Capacity)
	assert.Equal(t, 10*time.Second, cfg.RefillInterval)
	assert.Equal(t, 50*time.Second, cfg.TTL)
	assert.Equal(t, "ip_route", cfg.KeyStrategy)
}

func TestParseSeedUsers(t *testing.T) {
	got, err := parseSeedUsers(" admin:s3cret:Admin ; both:pw:Admin,Clinician;")
	require.NoError(t, err)
	assert.Equal(t, []SeedUser{
		{Username: "admin", Password: "s3cret", Role: "Admin"},
		{Username: "both", Password: "pw", Role: "Admin,Clinician"},
	}, got)

	none, err := parseSeedUsers("")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = parseSeedUsers("admin:only-two")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "only-two", "passwords must not leak into errors")
}
