package resclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aussiebroadwan/skyres/pkg/cryptox"
	"github.com/aussiebroadwan/skyres/pkg/jwtx"
)

// requester sends a request through the pipeline. Identity calls are always
// auth-class so they never recurse into a refresh.
type requester interface {
	Do(ctx context.Context, req Request) (*Envelope, error)
}

// Authenticator manages the session token against the identity endpoint.
type Authenticator struct {
	store      *TokenStore
	client     requester
	tokenPath  string
	defaultTTL time.Duration
	logger     *slog.Logger

	// flightTimeout bounds a shared refresh, which outlives any one caller.
	flightTimeout time.Duration

	mu    sync.Mutex
	creds *Credentials

	group singleflight.Group
}

func newAuthenticator(store *TokenStore, client requester, cfg Config, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		store:      store,
		client:     client,
		tokenPath:  cfg.TokenPath,
		defaultTTL: cfg.DefaultTokenTTL,
		logger:     logger,

		// An extend plus the fall back create
		flightTimeout: 2 * cfg.Timeout,
	}
}

// CreateToken authenticates with creds and stores the issued token. The
// credentials are remembered so an implicit refresh can fall back to them.
func (a *Authenticator) CreateToken(ctx context.Context, creds Credentials) (Token, error) {
	if fields := creds.Validate(); fields != nil {
		return Token{}, &Error{
			Kind:     KindValidation,
			Message:  "invalid credentials",
			Fields:   fields,
			Method:   http.MethodPost,
			Endpoint: a.tokenPath,
		}
	}

	env, err := a.client.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      a.tokenPath,
		Body:      tokenRequest{Credentials: creds},
		AuthClass: true,
	})
	if err != nil {
		return Token{}, authFailure("create token", err)
	}

	tok, err := a.parseToken(env.Data)
	if err != nil {
		return Token{}, authFailure("create token", err)
	}
	if tok.Value == "" {
		return Token{}, authFailure("create token", errors.New("response carried no token"))
	}

	a.store.SetToken(tok.Value, tok.ExpiresAt)

	a.mu.Lock()
	saved := creds
	a.creds = &saved
	a.mu.Unlock()

	a.logger.Info("token_created",
		"user", creds.Username,
		"token_fp", cryptox.FingerprintToken(tok.Value),
		"expires_at", tok.ExpiresAt,
	)
	return tok, nil
}

// RefreshToken re-authenticates. With creds it is CreateToken; without, the
// held token is refreshed in place, falling back to the remembered
// credentials. Concurrent implicit refreshes share one identity call.
func (a *Authenticator) RefreshToken(ctx context.Context, creds *Credentials) (Token, error) {
	if creds != nil {
		return a.CreateToken(ctx, *creds)
	}
	return a.refreshStale(ctx, "")
}

// refreshStale refreshes unless the store already holds something other than
// stale, in which case another caller got there first and its token is used.
// An empty stale always refreshes.
//
// The shared refresh runs detached from every caller's cancellation, so one
// impatient caller cannot fail the others; each caller stops waiting when its
// own ctx is done.
func (a *Authenticator) refreshStale(ctx context.Context, stale string) (Token, error) {
	ch := a.group.DoChan("refresh", func() (any, error) {
		if stale != "" {
			if cur, ok := a.store.Snapshot(); ok && cur.Value != stale {
				return cur, nil
			}
		}

		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.flightTimeout)
		defer cancel()
		return a.refresh(fctx)
	})

	select {
	case <-ctx.Done():
		return Token{}, authFailure("refresh token", ctx.Err())
	case res := <-ch:
		if res.Shared {
			a.logger.Debug("token_refresh_shared")
		}
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	}
}

func (a *Authenticator) refresh(ctx context.Context) (Token, error) {
	var cause error

	if current, ok := a.store.Token(); ok {
		tok, err := a.extend(ctx, current)
		if err == nil {
			return tok, nil
		}
		cause = err
		a.logger.Warn("token_extend_failed", "token_fp", cryptox.FingerprintToken(current), "error", err)
	}

	a.mu.Lock()
	creds := a.creds
	a.mu.Unlock()

	if creds != nil {
		return a.CreateToken(ctx, *creds)
	}
	if cause != nil {
		return Token{}, authFailure("refresh token", cause)
	}
	return Token{}, &Error{
		Kind:     KindAuthentication,
		Message:  "no token or credentials to refresh with",
		Method:   http.MethodPut,
		Endpoint: a.tokenPath,
	}
}

// extend asks the identity endpoint to renew current. A response without a
// token keeps current with a fresh expiry.
func (a *Authenticator) extend(ctx context.Context, current string) (Token, error) {
	env, err := a.client.Do(ctx, Request{
		Method:    http.MethodPut,
		Path:      a.tokenPath,
		Header:    bearer(current),
		AuthClass: true,
	})
	if err != nil {
		return Token{}, err
	}

	tok, err := a.parseToken(env.Data)
	if err != nil {
		return Token{}, err
	}
	if tok.Value == "" {
		tok.Value = current
		tok.ExpiresAt = a.expiryFor(current, tokenResponse{})
	}

	a.store.SetToken(tok.Value, tok.ExpiresAt)
	a.logger.Info("token_refreshed",
		"token_fp", cryptox.FingerprintToken(tok.Value),
		"expires_at", tok.ExpiresAt,
	)
	return tok, nil
}

// TokenInfo fetches what the identity endpoint knows about the held token.
func (a *Authenticator) TokenInfo(ctx context.Context) (*Envelope, error) {
	current, ok := a.store.Token()
	if !ok {
		return nil, &Error{
			Kind:     KindAuthentication,
			Message:  "no token held",
			Method:   http.MethodGet,
			Endpoint: a.tokenPath,
		}
	}
	return a.client.Do(ctx, Request{
		Method:    http.MethodGet,
		Path:      a.tokenPath,
		Header:    bearer(current),
		AuthClass: true,
	})
}

// IsTokenExpiringSoon reports whether the held token has at most threshold
// left. An absent or expired token counts as expiring.
func (a *Authenticator) IsTokenExpiringSoon(threshold time.Duration) bool {
	return a.store.RemainingSeconds() <= int(threshold/time.Second)
}

// IsAuthenticated reports whether a valid token is held.
func (a *Authenticator) IsAuthenticated() bool {
	return a.store.HasValidToken()
}

// EnsureAuthenticated fails unless a valid token is held.
func (a *Authenticator) EnsureAuthenticated() error {
	if a.store.HasValidToken() {
		return nil
	}
	return &Error{Kind: KindAuthentication, Message: "not authenticated"}
}

// Logout revokes the token server side when one is held, then clears local
// state whatever the server said.
func (a *Authenticator) Logout(ctx context.Context) error {
	if current, ok := a.store.Token(); ok {
		_, err := a.client.Do(ctx, Request{
			Method:    http.MethodDelete,
			Path:      a.tokenPath,
			Header:    bearer(current),
			AuthClass: true,
		})
		if err != nil {
			a.logger.Warn("token_revoke_failed", "token_fp", cryptox.FingerprintToken(current), "error", err)
		}
	}

	a.store.ClearToken()
	a.mu.Lock()
	a.creds = nil
	a.mu.Unlock()

	a.logger.Info("logged_out")
	return nil
}

// forget drops remembered credentials without touching the store.
func (a *Authenticator) forget() {
	a.mu.Lock()
	a.creds = nil
	a.mu.Unlock()
}

// ============================================================================
// Token response parsing
// ============================================================================

// tokenResponse accepts the identity endpoint's own shape
// ({"data": {"token", "idleTimeoutInMinutes"}}) as well as OAuth2 style
// access_token / expires_in bodies.
type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	TokenCamel  string `json:"accessToken"`

	ExpiresAt   string   `json:"expiresAt"`
	ExpiresIn   *float64 `json:"expiresIn"`
	ExpiresInOA *float64 `json:"expires_in"`
	IdleMinutes *float64 `json:"idleTimeoutInMinutes"`
}

func (a *Authenticator) parseToken(data json.RawMessage) (Token, error) {
	body := bytes.TrimSpace(data)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return Token{}, nil
	}

	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return Token{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	if inner := bytes.TrimSpace(wrapper.Data); len(inner) > 0 && inner[0] == '{' {
		body = inner
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Token{}, fmt.Errorf("failed to decode token response: %w", err)
	}

	value := firstNonEmpty(resp.Token, resp.AccessToken, resp.TokenCamel)
	if value == "" {
		return Token{}, nil
	}
	return Token{Value: value, ExpiresAt: a.expiryFor(value, resp)}, nil
}

// expiryFor resolves an absolute expiry: explicit timestamp, then relative
// seconds, then idle minutes, then the JWT exp claim, then the default TTL.
func (a *Authenticator) expiryFor(value string, resp tokenResponse) time.Time {
	now := a.store.now()

	if s := strings.TrimSpace(resp.ExpiresAt); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	for _, secs := range []*float64{resp.ExpiresIn, resp.ExpiresInOA} {
		if secs != nil && *secs > 0 {
			return now.Add(time.Duration(*secs * float64(time.Second)))
		}
	}
	if resp.IdleMinutes != nil && *resp.IdleMinutes > 0 {
		return now.Add(time.Duration(*resp.IdleMinutes * float64(time.Minute)))
	}
	if jwtx.LooksLikeJWT(value) {
		if exp, err := jwtx.ExpiryOf(value); err == nil {
			return exp
		}
	}
	return now.Add(a.defaultTTL)
}

// authFailure reports an identity call failure as an authentication error,
// keeping the original cause reachable.
func authFailure(op string, err error) error {
	if e, ok := AsError(err); ok && e.Kind == KindAuthentication {
		return err
	}

	out := &Error{Kind: KindAuthentication, Message: op + " failed", Err: err}
	if e, ok := AsError(err); ok {
		out.StatusCode = e.StatusCode
		out.Method = e.Method
		out.Endpoint = e.Endpoint
		out.RequestID = e.RequestID
		out.Attempts = e.Attempts
	}
	return out
}
