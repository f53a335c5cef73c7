package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultRetryAfter is used when a 429 carries no usable Retry-After header.
const DefaultRetryAfter = 60 * time.Second

// IsSuccess reports whether code is in the 2xx range.
func IsSuccess(code int) bool {
	return code >= 200 && code < 300
}

// IsServerError reports whether code is in the 5xx range.
func IsServerError(code int) bool {
	return code >= 500 && code < 600
}

// ParseRetryAfter reads a Retry-After header given either as delay seconds
// or as an HTTP-date. Missing or malformed values yield DefaultRetryAfter.
// Dates in the past yield zero.
func ParseRetryAfter(h http.Header, now time.Time) time.Duration {
	val := strings.TrimSpace(h.Get("Retry-After"))
	if val == "" {
		return DefaultRetryAfter
	}

	if secs, err := strconv.Atoi(val); err == nil {
		if secs < 0 {
			return DefaultRetryAfter
		}
		return time.Duration(secs) * time.Second
	}

	if at, err := http.ParseTime(val); err == nil {
		return max(at.Sub(now).Truncate(time.Second), 0)
	}

	return DefaultRetryAfter
}
