package resclient

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryScheduleIsClamped(t *testing.T) {
	t.Parallel()

	c := &Client{cfg: Config{BaseURL: "https://api.example.com", BackoffBase: 10 * time.Second}.withDefaults()}
	s := c.newSchedule()

	require.Equal(t, 10*time.Second, s.NextBackOff())
	require.Equal(t, 20*time.Second, s.NextBackOff())
	for i := 0; i < 40; i++ {
		require.Equal(t, DefaultMaxBackoff, s.NextBackOff(), "retry %d", i+3)
	}

	s.Reset()
	require.Equal(t, 10*time.Second, s.NextBackOff())
}

func TestRetryScheduleBaseAboveCeiling(t *testing.T) {
	t.Parallel()

	cfg := Config{BaseURL: "https://api.example.com", BackoffBase: time.Minute, MaxBackoff: time.Second}.withDefaults()
	require.Equal(t, time.Minute, cfg.MaxBackoff)

	s := (&Client{cfg: cfg}).newSchedule()
	require.Equal(t, time.Minute, s.NextBackOff())
	require.Equal(t, time.Minute, s.NextBackOff())
}

func TestRetryScheduleRetryAfter(t *testing.T) {
	t.Parallel()

	c := &Client{cfg: Config{BaseURL: "https://api.example.com"}.withDefaults()}
	s := c.newSchedule()

	s.waitFor(7 * time.Second)
	require.Equal(t, 7*time.Second, s.NextBackOff())
	// The exponential sequence kept counting underneath
	require.Equal(t, 2*time.Second, s.NextBackOff())

	s.waitFor(0)
	require.Equal(t, time.Duration(0), s.NextBackOff())
}

func TestClassify(t *testing.T) {
	t.Parallel()

	c := &Client{cfg: Config{BaseURL: "https://api.example.com", RetryRateLimited: true}.withDefaults()}

	tests := []struct {
		name  string
		err   error
		class retryClass
		wait  time.Duration
	}{
		{"transport", &TransportError{Method: http.MethodGet, Err: errors.New("refused")}, retryBackoff, 0},
		{"server error", NewError(KindAPI, 502, "bad gateway"), retryBackoff, 0},
		{"request timeout", NewError(KindAPI, 408, "timeout"), retryBackoff, 0},
		{"not found", NewError(KindAPI, 404, "missing"), retryNever, 0},
		{"validation", NewError(KindValidation, 400, "bad"), retryNever, 0},
		{"authentication", NewError(KindAuthentication, 401, "expired"), retryNever, 0},
		{"rate limit within cap", &Error{Kind: KindRateLimit, StatusCode: 429, RetryAfter: 5 * time.Second}, retryAfter, 5 * time.Second},
		{"rate limit beyond cap", &Error{Kind: KindRateLimit, StatusCode: 429, RetryAfter: 2 * time.Minute}, retryNever, 0},
		{"plain error", errors.New("boom"), retryNever, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, wait := c.classify(tt.err)
			require.Equal(t, tt.class, class)
			require.Equal(t, tt.wait, wait)
		})
	}
}

func TestSleepTimerStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	timer := newSleepTimer(ctx, sleepContext)
	timer.Start(time.Hour)

	select {
	case <-timer.C():
		t.Fatal("timer fired after cancellation")
	default:
	}
}
