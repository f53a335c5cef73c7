package resclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aussiebroadwan/skyres/pkg/httpx"
)

type retryClass uint8

const (
	retryNever retryClass = iota
	retryBackoff
	retryAfter
)

// classify reports whether a failed attempt may be tried again. Transport
// failures, 5xx and 408 back off exponentially. A 429 waits for the server's
// Retry-After, only when the client is configured to and the wait is within
// MaxRetryAfter. Everything else, validation in particular, is final.
func (c *Client) classify(err error) (retryClass, time.Duration) {
	var terr *TransportError
	if errors.As(err, &terr) {
		return retryBackoff, 0
	}

	e, ok := AsError(err)
	if !ok {
		return retryNever, 0
	}

	switch e.Kind {
	case KindAPI:
		if httpx.IsServerError(e.StatusCode) || e.StatusCode == http.StatusRequestTimeout {
			return retryBackoff, 0
		}
	case KindRateLimit:
		if c.cfg.RetryRateLimited && e.RetryAfter <= c.cfg.MaxRetryAfter {
			return retryAfter, e.RetryAfter
		}
	}
	return retryNever, 0
}

// retrySchedule is BackoffBase doubled per attempt up to MaxBackoff. A rate
// limited attempt waits for the server's Retry-After instead, while the
// exponential sequence still advances.
type retrySchedule struct {
	exp *backoff.ExponentialBackOff

	override bool
	wait     time.Duration
}

func (c *Client) newSchedule() *retrySchedule {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.BackoffBase
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = c.cfg.MaxBackoff
	exp.MaxElapsedTime = 0
	exp.Reset()
	return &retrySchedule{exp: exp}
}

// waitFor makes the next delay d.
func (s *retrySchedule) waitFor(d time.Duration) {
	s.override, s.wait = true, d
}

func (s *retrySchedule) NextBackOff() time.Duration {
	next := s.exp.NextBackOff()
	if s.override {
		s.override = false
		return s.wait
	}
	return next
}

func (s *retrySchedule) Reset() {
	s.exp.Reset()
	s.override = false
}

// sleepTimer drives backoff waits through the client's sleep hook. The tick
// is only delivered when the sleep completes; a cancelled context is picked
// up by the retry loop itself.
type sleepTimer struct {
	ctx   context.Context
	sleep func(context.Context, time.Duration) error
	c     chan time.Time
}

func newSleepTimer(ctx context.Context, sleep func(context.Context, time.Duration) error) *sleepTimer {
	return &sleepTimer{ctx: ctx, sleep: sleep, c: make(chan time.Time, 1)}
}

func (t *sleepTimer) Start(d time.Duration) {
	if err := t.sleep(t.ctx, d); err == nil {
		t.c <- time.Now()
	}
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time { return t.c }

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// exhausted is the error returned once every attempt has failed.
func exhausted(req Request, attempts int, last error) *Error {
	out := &Error{
		Kind:     KindAPI,
		Message:  fmt.Sprintf("request failed after %d attempts", attempts),
		Method:   req.Method,
		Endpoint: req.Path,
		Attempts: attempts,
		Err:      last,
	}
	if e, ok := AsError(last); ok {
		out.StatusCode = e.StatusCode
		out.RequestID = e.RequestID
	}
	return out
}

// cancelled wraps a caller cancellation or deadline so it is still an *Error.
func cancelled(req Request, attempts int, cause error) *Error {
	return &Error{
		Kind:     KindAPI,
		Message:  "request cancelled",
		Method:   req.Method,
		Endpoint: req.Path,
		Attempts: attempts,
		Err:      cause,
	}
}

// rejected wraps a request that could not be built, so was never sent.
func rejected(req Request, cause error) *Error {
	return &Error{
		Kind:     KindValidation,
		Message:  "request rejected before sending",
		Method:   req.Method,
		Endpoint: req.Path,
		Err:      cause,
	}
}
