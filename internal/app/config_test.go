package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/skyres/pkg/resclient"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"SKYRES_BASE_URL", "SKYRES_TIMEOUT", "SKYRES_MAX_ATTEMPTS",
		"SKYRES_CACHE_ENABLED", "SKYRES_HTTP2", "SKYRES_USERNAME", "SKYRES_PASSWORD",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	require.Equal(t, resclient.DefaultTimeout, cfg.Timeout)
	require.Equal(t, resclient.DefaultMaxAttempts, cfg.MaxAttempts)
	require.Equal(t, resclient.DefaultTokenPath, cfg.TokenPath)
	require.False(t, cfg.CacheEnabled)
	require.True(t, cfg.HTTP2)
	require.Equal(t, "default", cfg.Profile)

	_, ok := cfg.Credentials()
	require.False(t, ok)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SKYRES_BASE_URL", "https://api.example.com")
	t.Setenv("SKYRES_TIMEOUT", "10s")
	t.Setenv("SKYRES_DEADLINE", "45")
	t.Setenv("SKYRES_BACKOFF_BASE", "250ms")
	t.Setenv("SKYRES_MAX_ATTEMPTS", "5")
	t.Setenv("SKYRES_MAX_BACKOFF", "2m")
	t.Setenv("SKYRES_RETRY_RATE_LIMITED", "true")
	t.Setenv("SKYRES_CACHE_ENABLED", "1")
	t.Setenv("SKYRES_CACHE_TTL", "not-a-duration")
	t.Setenv("SKYRES_HTTP2", "false")
	t.Setenv("SKYRES_LOG_REQUESTS", "yes") // not a bool, default kept
	t.Setenv("SKYRES_USERNAME", "agent")
	t.Setenv("SKYRES_PASSWORD", "hunter2")
	t.Setenv("SKYRES_ROLE_CODE", "WWWA")
	t.Setenv("SKYRES_RATELIMIT_REQUESTS", "5")
	t.Setenv("SKYRES_RATELIMIT_WINDOW_SEC", "1")
	t.Setenv("SKYRES_RATELIMIT_BURST", "10")

	cfg := LoadConfig()
	require.Equal(t, 10*time.Second, cfg.Timeout)
	require.Equal(t, 45*time.Second, cfg.Deadline)
	require.Equal(t, 250*time.Millisecond, cfg.BackoffBase)
	require.Equal(t, 5, cfg.MaxAttempts)
	require.Equal(t, 2*time.Minute, cfg.MaxBackoff)
	require.True(t, cfg.RetryRateLimited)
	require.True(t, cfg.CacheEnabled)
	require.Equal(t, resclient.DefaultCacheTTL, cfg.CacheTTL)
	require.False(t, cfg.HTTP2)
	require.False(t, cfg.LogRequests)

	creds, ok := cfg.Credentials()
	require.True(t, ok)
	require.Equal(t, "agent", creds.Username)
	require.Equal(t, "WWW", creds.Domain)
	require.Equal(t, "WWWA", creds.RoleCode)
	require.Nil(t, creds.Validate())

	cc := cfg.ClientConfig()
	require.Equal(t, "https://api.example.com", cc.BaseURL)
	require.Equal(t, "skyres/"+BuildVersion, cc.UserAgent)
	require.True(t, cc.Cache.Enabled)
	require.False(t, cc.EnableHTTP2)
	require.True(t, cc.RateLimit.Enabled())
	require.Equal(t, 10, cc.RateLimit.Burst)
}
