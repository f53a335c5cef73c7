package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/skyres/pkg/httpx"
	"github.com/aussiebroadwan/skyres/pkg/resclient"
)

type Config struct {
	BaseURL            string // Required: reservation API base URL
	SubscriptionKey    string // Optional: API gateway subscription key
	SubscriptionHeader string // Optional: header carrying the key (default: Ocp-Apim-Subscription-Key)
	TokenPath          string // Optional: identity endpoint (default: /api/nsk/v1/token)

	Username    string // Optional: agent name used when no session is stored
	Password    string // Optional: agent password
	Domain      string // Optional: agent domain code (default: WWW)
	Location    string // Optional: location code
	RoleCode    string // Optional: role code
	ChannelType string // Optional: channel type (default: Api)

	Timeout          time.Duration // Per attempt timeout (default: 30s)
	Deadline         time.Duration // Whole call deadline, 0 disables (default: 0)
	MaxAttempts      int           // Retry budget (default: 3)
	BackoffBase      time.Duration // First retry delay (default: 1s)
	MaxBackoff       time.Duration // Retry delay ceiling (default: 30s)
	RetryRateLimited bool          // Honour Retry-After on 429 (default: false)
	RefreshThreshold time.Duration // Proactive refresh window (default: 120s)
	HTTP2            bool          // Negotiate HTTP/2 (default: true)
	RateLimit        httpx.RateLimitConfig

	CacheEnabled   bool          // Cache GET envelopes (default: false)
	CacheTTL       time.Duration // Cache entry lifetime (default: 5m)
	CacheKeyPrefix string        // Cache key prefix (default: skyres:)
	RedisURL       string        // Optional: share the cache through Redis

	LogRequests bool   // Log API requests and errors (default: false)
	LogChannel  string // Log channel attribute (default: reservations)

	Profile       string // Session profile name (default: default)
	SessionFile   string // SQLite file holding sealed sessions (default: ./skyres.db)
	SessionSecret string // Optional: enables session persistence when set

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: warn)
	LogFormat string // Log format (json, text) (default: text)
}

func LoadConfig() Config {
	return Config{
		BaseURL:            os.Getenv("SKYRES_BASE_URL"),
		SubscriptionKey:    os.Getenv("SKYRES_SUBSCRIPTION_KEY"),
		SubscriptionHeader: getEnvOrDefault("SKYRES_SUBSCRIPTION_HEADER", resclient.DefaultSubscriptionHeader),
		TokenPath:          getEnvOrDefault("SKYRES_TOKEN_PATH", resclient.DefaultTokenPath),

		Username:    os.Getenv("SKYRES_USERNAME"),
		Password:    os.Getenv("SKYRES_PASSWORD"),
		Domain:      getEnvOrDefault("SKYRES_DOMAIN", "WWW"),
		Location:    os.Getenv("SKYRES_LOCATION"),
		RoleCode:    os.Getenv("SKYRES_ROLE_CODE"),
		ChannelType: getEnvOrDefault("SKYRES_CHANNEL_TYPE", "Api"),

		Timeout:          getEnvDurationOrDefault("SKYRES_TIMEOUT", resclient.DefaultTimeout),
		Deadline:         getEnvDurationOrDefault("SKYRES_DEADLINE", 0),
		MaxAttempts:      getEnvIntOrDefault("SKYRES_MAX_ATTEMPTS", resclient.DefaultMaxAttempts),
		BackoffBase:      getEnvDurationOrDefault("SKYRES_BACKOFF_BASE", resclient.DefaultBackoffBase),
		MaxBackoff:       getEnvDurationOrDefault("SKYRES_MAX_BACKOFF", resclient.DefaultMaxBackoff),
		RetryRateLimited: getEnvBoolOrDefault("SKYRES_RETRY_RATE_LIMITED", false),
		RefreshThreshold: getEnvDurationOrDefault("SKYRES_REFRESH_THRESHOLD", resclient.DefaultRefreshThreshold),
		HTTP2:            getEnvBoolOrDefault("SKYRES_HTTP2", true),
		RateLimit:        httpx.ParseRateLimitFromEnv("SKYRES", httpx.RateLimitConfig{}),

		CacheEnabled:   getEnvBoolOrDefault("SKYRES_CACHE_ENABLED", false),
		CacheTTL:       getEnvDurationOrDefault("SKYRES_CACHE_TTL", resclient.DefaultCacheTTL),
		CacheKeyPrefix: getEnvOrDefault("SKYRES_CACHE_PREFIX", resclient.DefaultCacheKeyPrefix),
		RedisURL:       os.Getenv("SKYRES_REDIS_URL"),

		LogRequests: getEnvBoolOrDefault("SKYRES_LOG_REQUESTS", false),
		LogChannel:  getEnvOrDefault("SKYRES_LOG_CHANNEL", resclient.DefaultLogChannel),

		Profile:       getEnvOrDefault("SKYRES_PROFILE", "default"),
		SessionFile:   getEnvOrDefault("SKYRES_SESSION_FILE", "skyres.db"),
		SessionSecret: os.Getenv("SKYRES_SESSION_SECRET"),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "warn"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}
}

// ClientConfig maps the environment onto the request pipeline settings.
func (c Config) ClientConfig() resclient.Config {
	return resclient.Config{
		BaseURL:            c.BaseURL,
		SubscriptionKey:    c.SubscriptionKey,
		SubscriptionHeader: c.SubscriptionHeader,
		TokenPath:          c.TokenPath,
		UserAgent:          "skyres/" + BuildVersion,
		Timeout:            c.Timeout,
		Deadline:           c.Deadline,
		MaxAttempts:        c.MaxAttempts,
		BackoffBase:        c.BackoffBase,
		MaxBackoff:         c.MaxBackoff,
		RetryRateLimited:   c.RetryRateLimited,
		RefreshThreshold:   c.RefreshThreshold,
		Cache: resclient.CacheConfig{
			Enabled:   c.CacheEnabled,
			TTL:       c.CacheTTL,
			KeyPrefix: c.CacheKeyPrefix,
		},
		Logging: resclient.LoggingConfig{
			Enabled: c.LogRequests,
			Channel: c.LogChannel,
		},
		RateLimit:   c.RateLimit,
		EnableHTTP2: c.HTTP2,
	}
}

// Credentials returns the agent credentials, or false when none are set.
func (c Config) Credentials() (resclient.Credentials, bool) {
	if c.Username == "" && c.Password == "" {
		return resclient.Credentials{}, false
	}
	return resclient.Credentials{
		Username:    c.Username,
		Password:    c.Password,
		Domain:      c.Domain,
		Location:    c.Location,
		RoleCode:    c.RoleCode,
		ChannelType: c.ChannelType,
	}, true
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
