package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: memory
auth:
  jwtSecret: s3cret
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 1313, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Cache.Users)
	assert.Equal(t, time.Hour, cfg.Cache.ImageURLs)
	assert.Equal(t, time.Hour, cfg.Goals.StreakWarningWindow)
	assert.Equal(t, "Local", cfg.Goals.DefaultTimeZone)
	assert.False(t, cfg.StorageEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigParsesDurations(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: memory
auth:
  jwtSecret: s3cret
cache:
  users: 90s
goals:
  defaultTimeZone: America/New_York
  streakWarningWindow: 0s
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Cache.Users)
	assert.Equal(t, time.Duration(0), cfg.Goals.StreakWarningWindow)
	assert.Equal(t, "America/New_York", cfg.Goals.DefaultTimeZone)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"MONGODB_URI":    "mongodb://db:27017",
		"JWT_SECRET":     "from-env",
		"S3_BUCKET_NAME": "proofs",
		"REDIS_ADDR":     "redis:6379",
		"APP_ENV":        "production",
		"PORT":           "8080",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, "mongodb://db:27017", cfg.Database.URI)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "proofs", cfg.Storage.Bucket)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.IsDev())

	env["PORT"] = "eighty"
	assert.ErrorContains(t, cfg.applyEnv(lookup), "invalid PORT")
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Database.Driver = "postgres"
	cfg.Storage.Bucket = "proofs"
	cfg.Goals.DefaultTimeZone = "Mars/Olympus"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"server.port", "database.driver", "auth.jwtSecret", "storage.region", "goals.defaultTimeZone"} {
		assert.ErrorContains(t, err, want)
	}
}
