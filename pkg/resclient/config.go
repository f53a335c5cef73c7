package resclient

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/skyres/pkg/httpx"
)

// Defaults applied by New for zero-valued Config fields.
const (
	DefaultSubscriptionHeader = "Ocp-Apim-Subscription-Key"
	DefaultTokenPath          = "/api/nsk/v1/token"
	DefaultTimeout            = 30 * time.Second
	DefaultMaxAttempts        = 3
	DefaultBackoffBase        = time.Second
	DefaultMaxBackoff         = 30 * time.Second
	DefaultMaxRetryAfter      = 60 * time.Second
	DefaultRefreshThreshold   = 120 * time.Second
	DefaultTokenTTL           = time.Hour
	DefaultCacheTTL           = 5 * time.Minute
	DefaultCacheKeyPrefix     = "skyres:"
	DefaultLogChannel         = "reservations"
)

var ErrMissingBaseURL = errors.New("resclient: base url is required")

// Config carries everything the request pipeline needs to know about the
// reservation API and how hard to try.
type Config struct {
	BaseURL            string
	SubscriptionKey    string
	SubscriptionHeader string // header carrying SubscriptionKey (default: Ocp-Apim-Subscription-Key)
	TokenPath          string // identity endpoint (default: /api/nsk/v1/token)
	UserAgent          string

	Timeout     time.Duration // per attempt (default: 30s)
	Deadline    time.Duration // whole call including retries, 0 means none
	MaxAttempts int           // default: 3
	BackoffBase time.Duration // first retry delay, doubled each time (default: 1s)
	MaxBackoff  time.Duration // ceiling for the doubled delay (default: 30s, never below BackoffBase)

	// RetryRateLimited lets 429 responses be retried after the server's
	// Retry-After, provided it is no longer than MaxRetryAfter. Otherwise a
	// rate limit error is returned to the caller straight away.
	RetryRateLimited bool
	MaxRetryAfter    time.Duration

	RefreshThreshold time.Duration // proactive refresh window (default: 120s)
	DefaultTokenTTL  time.Duration // used when a token response carries no expiry (default: 1h)

	Cache     CacheConfig
	Logging   LoggingConfig
	RateLimit httpx.RateLimitConfig // outbound throttle, zero disables

	EnableHTTP2 bool
}

// CacheConfig controls caching of GET envelopes.
type CacheConfig struct {
	Enabled   bool
	TTL       time.Duration
	KeyPrefix string
}

// LoggingConfig gates request and error logging.
type LoggingConfig struct {
	Enabled bool
	Channel string
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.BaseURL), "/")
	if c.SubscriptionHeader == "" {
		c.SubscriptionHeader = DefaultSubscriptionHeader
	}
	if c.TokenPath == "" {
		c.TokenPath = DefaultTokenPath
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	c.MaxBackoff = max(c.MaxBackoff, c.BackoffBase)
	if c.MaxRetryAfter <= 0 {
		c.MaxRetryAfter = DefaultMaxRetryAfter
	}
	if c.RefreshThreshold <= 0 {
		c.RefreshThreshold = DefaultRefreshThreshold
	}
	if c.DefaultTokenTTL <= 0 {
		c.DefaultTokenTTL = DefaultTokenTTL
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = DefaultCacheKeyPrefix
	}
	if c.Logging.Channel == "" {
		c.Logging.Channel = DefaultLogChannel
	}
	return c
}

// Validate checks the fields New cannot default.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("resclient: invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("resclient: base url must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("resclient: base url has no host")
	}
	return nil
}
