package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 24, cfg.Auth.StandardTokenTTLHours)
	assert.Equal(t, 24*7, cfg.Auth.BusinessTokenTTLHours)
	assert.Equal(t, 24*7, cfg.Auth.AdminTokenTTLHours)
	assert.Equal(t, 5, cfg.Auth.LockoutThreshold)
	assert.Equal(t, 2*time.Hour, cfg.Auth.LockoutDuration())
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.InviteTTL())
	assert.False(t, cfg.App.IsProduction())
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Redis.PingTimeout())
}

func TestRedisPingTimeout(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("REDIS_PING_TIMEOUT_MS", "250")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Redis.PingTimeout())
	assert.Equal(t, 2*time.Second, RedisConfig{}.PingTimeout())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUTH_LOCKOUT_THRESHOLD", "3")
	t.Setenv("AUTH_LOCKOUT_MINUTES", "15")
	t.Setenv("RATE_LIMIT_AUTH_RPS", "0.5")
	t.Setenv("AUTH_BCRYPT_COST", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Auth.LockoutThreshold)
	assert.Equal(t, 15*time.Minute, cfg.Auth.LockoutDuration())
	assert.Equal(t, 0.5, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
}

func TestLoadRejectsDefaultSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "abc")

	_, err := Load()
	assert.Error(t, err)
}
