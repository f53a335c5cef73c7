/*
Package resclient provides the request and authentication pipeline for an
airline reservation HTTP API.

# Overview

Every call made by an endpoint caller goes through one Client. The Client
attaches the subscription key and the session's bearer token, refreshes the
token when it is about to expire or has been rejected, retries transient
failures with exponential backoff, and hands back either an Envelope or a
typed *Error. Endpoint-specific payloads pass through as JSON.

	client, err := resclient.New(resclient.Config{
		BaseURL:         "https://api.example.com",
		SubscriptionKey: key,
	})

	// Open a session
	_, err = client.Auth().CreateToken(ctx, resclient.Credentials{
		Username: "agent",
		Password: password,
		Domain:   "WWW",
	})

	// Call any endpoint
	env, err := client.Get(ctx, "/api/nsk/v1/booking", nil, nil)

	var booking Booking
	err = env.Decode(&booking)

# Pipeline

Client.Do moves each call through these states:

	idle → proactive_refresh_check → executing → succeeded
	                                     │
	                                     ├→ reactive_refreshing → executing (once)
	                                     ├→ retrying → executing
	                                     └→ failed

Identity endpoint calls are auth-class: they skip the refresh checks so a
refresh can never trigger another refresh.

A held token with RefreshThreshold (default 120s) or less left is refreshed
before the call is sent. If that fails the call is still sent with the old
token.

A 401 on the first attempt triggers exactly one refresh and one re-send. If
the refresh fails, or the re-sent request is also rejected, the original
authentication error is returned.

Transport failures, 5xx and 408 responses are retried up to MaxAttempts
times, waiting BackoffBase, then twice that, and so on up to MaxBackoff.
When every attempt fails the result is a KindAPI error wrapping the last
cause. Validation
errors are never retried. Rate limit errors are returned at once unless
RetryRateLimited is set, in which case the server's Retry-After is honoured
up to MaxRetryAfter.

Concurrent refreshes are coalesced: callers racing into a 401 share one
identity call.

# Errors

All errors returned by Client calls are *Error values with one of four kinds.
Use errors.Is with the kind sentinels:

	env, err := client.Post(ctx, "/api/nsk/v4/booking", req, nil)
	switch {
	case errors.Is(err, resclient.ErrValidation):
		e, _ := resclient.AsError(err)
		for field, msg := range e.Fields {
			// ...
		}
	case errors.Is(err, resclient.ErrRateLimited):
		e, _ := resclient.AsError(err)
		time.Sleep(e.RetryAfter)
	case errors.Is(err, resclient.ErrAuthentication):
		// session is gone, log in again
	}

# Caching

With Cache.Enabled, successful GET envelopes are kept for Cache.TTL, keyed by
a hash of the method, URL and payload. The cache is advisory: writes do not
invalidate it. Pass WithCache(cachex.NewRedis(...)) to share it between
processes.

# Logging

When Logging.Enabled is set, requests, responses, retries and errors are
logged through log/slog under the configured channel. The subscription key,
Authorization header and credential fields are always redacted.
*/
package resclient
