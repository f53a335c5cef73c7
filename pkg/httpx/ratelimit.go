package httpx

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines the outbound request budget towards the API.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window.
	// Zero disables limiting.
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// Enabled reports whether the config describes an actual limit.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerWindow > 0 && c.Window > 0
}

// ParseRateLimitFromEnv reads rate limit configuration from environment variables.
// Environment variables follow the pattern: {prefix}_RATELIMIT_{field}
// For example: SKYRES_RATELIMIT_REQUESTS, SKYRES_RATELIMIT_WINDOW_SEC, SKYRES_RATELIMIT_BURST
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	if val := os.Getenv(prefix + "_RATELIMIT_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests >= 0 {
			config.RequestsPerWindow = requests
		}
	}

	if val := os.Getenv(prefix + "_RATELIMIT_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}

	if val := os.Getenv(prefix + "_RATELIMIT_BURST"); val != "" {
		if burst, err := strconv.Atoi(val); err == nil && burst > 0 {
			config.Burst = burst
		}
	}

	return config
}

// NewLimiter converts the config into a token bucket. Burst falls back to 1.
func NewLimiter(config RateLimitConfig) *rate.Limiter {
	if !config.Enabled() {
		return rate.NewLimiter(rate.Inf, 0)
	}
	ratePerSecond := float64(config.RequestsPerWindow) / config.Window.Seconds()
	return rate.NewLimiter(rate.Limit(ratePerSecond), max(config.Burst, 1))
}

// RateLimitTransport blocks each outbound request until the limiter admits
// it. Waiting honours the request context, so a cancelled call never sends.
func RateLimitTransport(config RateLimitConfig, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if !config.Enabled() {
		return next
	}
	return &limitedTransport{limiter: NewLimiter(config), next: next}
}

type limitedTransport struct {
	limiter *rate.Limiter
	next    http.RoundTripper
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}
