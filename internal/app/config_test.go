package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("ENV_FILE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "IN", cfg.DefaultPhoneRegion)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, 2*time.Minute, cfg.ExpirySweepLockTTL)
	assert.Equal(t, 720*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "odyssey.env")
	require.NoError(t, os.WriteFile(path, []byte("SESSION_SECRET=from-file\nRATE_LIMIT_PER_MINUTE=30\nAPP_ENV=production\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("SESSION_SECRET", "")
	os.Unsetenv("SESSION_SECRET")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "45")
	t.Setenv("APP_ENV", "")
	os.Unsetenv("APP_ENV")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.SessionSecret)
	assert.Equal(t, 45, cfg.RateLimitPerMinute, "process environment wins over the file")
	assert.True(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("RATE_LIMIT_PER_MINUTE", "10")
	t.Setenv("EXPIRY_SWEEP_LOCK_TTL", "soon")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigMissingEnvFile(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SESSION_SECRET", "s3cret")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestNewLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", LogLevel: "warn"})
	logger.Info("hidden")
	logger.Warn("shown", slog.String("code", "QUO0001"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "QUO0001", line["code"])
	assert.Equal(t, "WARN", line["level"])
}

func TestInTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "true")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "nope")
	RefreshTestMode()
	assert.False(t, InTestMode())
}
