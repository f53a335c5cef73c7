package resclient

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/aussiebroadwan/skyres/pkg/cachex"
	"github.com/aussiebroadwan/skyres/pkg/jwtx"
	"github.com/aussiebroadwan/skyres/pkg/slogx"
)

// Client is the entry point for endpoint callers. It is safe for concurrent
// use; all calls share one TokenStore.
type Client struct {
	cfg    Config
	logger *slog.Logger

	tokens *TokenStore
	auth   *Authenticator
	exec   *Executor
	norm   *Normalizer
	cache  Cache

	sleep func(ctx context.Context, d time.Duration) error
	hook  StateHook
}

// Option customises a Client.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	cache      Cache
	tokens     *TokenStore
	httpClient *http.Client
	hook       StateHook
}

// WithLogger sets the base logger. It is only used when logging is enabled.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCache sets the GET envelope cache. Caching must still be enabled in
// Config; without this option an in-memory cache is used.
func WithCache(cache Cache) Option {
	return func(o *options) { o.cache = cache }
}

// WithTokenStore shares an existing token store.
func WithTokenStore(store *TokenStore) Option {
	return func(o *options) { o.tokens = store }
}

// WithHTTPClient replaces the transport stack built from Config. Request
// logging is still layered on top when enabled.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithStateHook observes pipeline state transitions.
func WithStateHook(hook StateHook) Option {
	return func(o *options) { o.hook = hook }
}

// New builds a Client from cfg, applying defaults to zero fields.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := slogx.Discard()
	if cfg.Logging.Enabled {
		logger = o.logger
		if logger == nil {
			logger = slog.Default()
		}
		logger = logger.With("channel", cfg.Logging.Channel)
	}

	c := &Client{
		cfg:    cfg,
		logger: logger,
		tokens: o.tokens,
		norm:   NewNormalizer(logger, cfg.Logging.Enabled),
		sleep:  sleepContext,
		hook:   o.hook,
	}
	if c.tokens == nil {
		c.tokens = NewTokenStore()
	}

	if o.httpClient != nil {
		hc := o.httpClient
		if cfg.Logging.Enabled {
			wrapped := *hc
			wrapped.Transport = slogx.RoundTripper(logger, hc.Transport, cfg.SubscriptionHeader)
			hc = &wrapped
		}
		c.exec = newExecutor(cfg, hc, logger)
	} else {
		exec, err := NewExecutor(cfg, logger)
		if err != nil {
			return nil, err
		}
		c.exec = exec
	}

	if cfg.Cache.Enabled {
		c.cache = o.cache
		if c.cache == nil {
			c.cache = cachex.NewMemory()
		}
	}

	c.auth = newAuthenticator(c.tokens, c, cfg, logger)
	return c, nil
}

// Auth returns the authenticator bound to this client's token store.
func (c *Client) Auth() *Authenticator { return c.auth }

// Tokens returns the client's token store.
func (c *Client) Tokens() *TokenStore { return c.tokens }

// Get fetches path with optional query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values, header http.Header) (*Envelope, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query, Header: header})
}

// Post sends body to path.
func (c *Client) Post(ctx context.Context, path string, body any, header http.Header) (*Envelope, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Header: header})
}

// Put sends body to path.
func (c *Client) Put(ctx context.Context, path string, body any, header http.Header) (*Envelope, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body, Header: header})
}

// Patch sends body to path.
func (c *Client) Patch(ctx context.Context, path string, body any, header http.Header) (*Envelope, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body, Header: header})
}

// Delete removes path. body may be nil.
func (c *Client) Delete(ctx context.Context, path string, body any, header http.Header) (*Envelope, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path, Body: body, Header: header})
}

// SetAccessToken installs a token obtained elsewhere. Its expiry comes from
// the JWT exp claim when it has one, else the default token TTL.
func (c *Client) SetAccessToken(token string) {
	expiresAt := c.tokens.now().Add(c.cfg.DefaultTokenTTL)
	if jwtx.LooksLikeJWT(token) {
		if exp, err := jwtx.ExpiryOf(token); err == nil {
			expiresAt = exp
		}
	}
	c.tokens.SetToken(token, expiresAt)
}

// SetAccessTokenUntil installs a token with a known expiry.
func (c *Client) SetAccessTokenUntil(token string, expiresAt time.Time) {
	c.tokens.SetToken(token, expiresAt)
}

// ClearAccessToken drops the held token and any remembered credentials,
// without contacting the server.
func (c *Client) ClearAccessToken() {
	c.tokens.ClearToken()
	c.auth.forget()
}
