package resclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aussiebroadwan/skyres/pkg/cryptox"
	"github.com/aussiebroadwan/skyres/pkg/slogx"
)

// State is a step of the per-call pipeline.
type State string

const (
	StateIdle                  State = "idle"
	StateProactiveRefreshCheck State = "proactive_refresh_check"
	StateExecuting             State = "executing"
	StateReactiveRefreshing    State = "reactive_refreshing"
	StateRetrying              State = "retrying"
	StateSucceeded             State = "succeeded"
	StateFailed                State = "failed"
)

// StateHook is called on every state transition of a call.
type StateHook func(ctx context.Context, req Request, state State)

// Do runs req through the pipeline:
//
//  1. Auth-class requests skip steps 2 and 3.
//  2. A held token expiring within RefreshThreshold is refreshed first. A
//     failure here is logged and the call goes ahead with the old token.
//  3. GET requests are answered from the cache when caching is enabled.
//  4. Up to MaxAttempts tries. A 401 on the first try gets one refresh and
//     one re-send that does not use up an attempt. Transport failures and
//     5xx back off exponentially; 429 may wait for Retry-After; anything
//     else is returned as is.
//
// Every error returned is an *Error.
func (c *Client) Do(ctx context.Context, req Request) (*Envelope, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if c.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Deadline)
		defer cancel()
	}

	logger := slogx.FromContext(ctx, c.logger).With("method", req.Method, "endpoint", req.Path)
	c.transition(ctx, logger, req, StateIdle)

	if !req.AuthClass {
		c.transition(ctx, logger, req, StateProactiveRefreshCheck)
		c.proactiveRefresh(ctx, logger)
	}

	var key string
	if c.cacheable(req) {
		k, err := c.keyFor(req)
		if err != nil {
			c.transition(ctx, logger, req, StateFailed)
			return nil, rejected(req, err)
		}
		key = k
		if env, ok := c.cached(ctx, logger, key); ok {
			c.transition(ctx, logger, req, StateSucceeded)
			return env, nil
		}
	}

	env, err := c.run(ctx, logger, req)
	if err != nil {
		c.transition(ctx, logger, req, StateFailed)
		return nil, err
	}

	if key != "" {
		c.store(ctx, logger, key, env)
	}
	c.transition(ctx, logger, req, StateSucceeded)
	return env, nil
}

// run is the bounded retry loop with the one-shot reactive refresh. The
// refresh and its re-send happen inside one attempt, so they never use up
// the retry budget.
func (c *Client) run(ctx context.Context, logger *slog.Logger, req Request) (*Envelope, error) {
	var (
		env       *Envelope
		last      error
		attempts  int
		refreshed bool
		final     bool
	)

	schedule := c.newSchedule()
	policy := backoff.WithContext(backoff.WithMaxRetries(schedule, uint64(c.cfg.MaxAttempts-1)), ctx)

	operation := func() error {
		attempts++
		for {
			c.transition(ctx, logger, req, StateExecuting)

			var token string
			if !req.AuthClass {
				token, _ = c.tokens.Token()
			}

			res, err := c.attempt(ctx, req, token)
			if err == nil {
				env = res
				return nil
			}
			last = err

			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}

			if c.shouldRefresh(req, err, attempts, refreshed) {
				refreshed = true
				c.transition(ctx, logger, req, StateReactiveRefreshing)
				if _, rerr := c.auth.refreshStale(ctx, token); rerr != nil {
					logger.Warn("reactive_refresh_failed", "error", rerr)
					final = true
					return backoff.Permanent(err)
				}
				continue
			}

			class, wait := c.classify(err)
			switch class {
			case retryNever:
				final = true
				return backoff.Permanent(err)
			case retryAfter:
				schedule.waitFor(wait)
			}
			return err
		}
	}

	notify := func(err error, wait time.Duration) {
		c.transition(ctx, logger, req, StateRetrying)
		logger.Info("api_retry", "attempt", attempts, "wait", wait, "error", err)
	}

	err := backoff.RetryNotifyWithTimer(operation, policy, notify, newSleepTimer(ctx, c.sleep))
	switch {
	case err == nil:
		env.Meta.Attempts = attempts
		return env, nil
	case ctx.Err() != nil:
		return nil, cancelled(req, attempts, errors.Join(ctx.Err(), last))
	case final:
		return nil, withAttempts(last, attempts)
	default:
		return nil, exhausted(req, attempts, last)
	}
}

// attempt sends req once and classifies the outcome.
func (c *Client) attempt(ctx context.Context, req Request, token string) (*Envelope, error) {
	raw, err := c.exec.Execute(ctx, req, token)
	if err != nil {
		var terr *TransportError
		if errors.As(err, &terr) {
			return nil, err
		}
		return nil, rejected(req, err)
	}
	return c.norm.Normalize(ctx, req, raw)
}

// shouldRefresh is true only for a 401 on the first try of a non auth-class
// call that has not refreshed yet.
func (c *Client) shouldRefresh(req Request, err error, attempt int, refreshed bool) bool {
	if req.AuthClass || refreshed || attempt != 1 {
		return false
	}
	e, ok := AsError(err)
	return ok && e.Kind == KindAuthentication
}

func (c *Client) proactiveRefresh(ctx context.Context, logger *slog.Logger) {
	token, ok := c.tokens.Token()
	if !ok || !c.auth.IsTokenExpiringSoon(c.cfg.RefreshThreshold) {
		return
	}

	logger.Debug("proactive_refresh",
		"token_fp", cryptox.FingerprintToken(token),
		"remaining_sec", c.tokens.RemainingSeconds(),
	)
	if _, err := c.auth.refreshStale(ctx, token); err != nil {
		logger.Warn("proactive_refresh_failed", "error", err)
	}
}

func (c *Client) transition(ctx context.Context, logger *slog.Logger, req Request, s State) {
	logger.Debug("pipeline_state", "state", string(s))
	if c.hook != nil {
		c.hook(ctx, req, s)
	}
}

// withAttempts stamps the attempt count on a pipeline error.
func withAttempts(err error, attempts int) error {
	if e, ok := AsError(err); ok {
		e.Attempts = attempts
		return e
	}
	return err
}

// ============================================================================
// Cache
// ============================================================================

func (c *Client) cacheable(req Request) bool {
	return c.cache != nil && req.Method == http.MethodGet && !req.AuthClass
}

func (c *Client) keyFor(req Request) (string, error) {
	target, err := req.URL(c.cfg.BaseURL)
	if err != nil {
		return "", err
	}
	body, err := req.encodeBody()
	if err != nil {
		return "", err
	}
	return cacheKey(c.cfg.Cache.KeyPrefix, req.Method, target, body), nil
}

func (c *Client) cached(ctx context.Context, logger *slog.Logger, key string) (*Envelope, bool) {
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache_get_failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logger.Warn("cache_entry_invalid", "error", err)
		return nil, false
	}
	env.Meta.Cached = true
	env.Meta.Attempts = 0
	logger.Debug("cache_hit")
	return &env, true
}

func (c *Client) store(ctx context.Context, logger *slog.Logger, key string, env *Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		logger.Warn("cache_encode_failed", "error", err)
		return
	}
	if err := c.cache.Set(ctx, key, data, c.cfg.Cache.TTL); err != nil {
		logger.Warn("cache_set_failed", "error", err)
	}
}
