package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/skyres/pkg/cryptox"
	"github.com/aussiebroadwan/skyres/pkg/resclient"
)

// SessionKeeper adapts Store to resclient tokens, sealing each token before it
// is written and opening it when read back.
type SessionKeeper struct {
	store  Store
	sealer *cryptox.Sealer
	now    func() time.Time
}

// NewSessionKeeper creates a keeper that seals tokens with sealer.
func NewSessionKeeper(store Store, sealer *cryptox.Sealer) *SessionKeeper {
	return &SessionKeeper{store: store, sealer: sealer, now: time.Now}
}

// Save persists tok under profile. An empty username keeps the agent name
// already recorded for the session.
func (k *SessionKeeper) Save(ctx context.Context, profile, baseURL, username string, tok resclient.Token) error {
	if tok.IsZero() {
		return k.store.Sessions().DeleteSession(ctx, profile)
	}

	if username == "" {
		prev, err := k.store.Sessions().GetSession(ctx, profile)
		switch {
		case err == nil:
			username = prev.Username
		case !errors.Is(err, ErrNotFound):
			return err
		}
	}

	sealed, err := k.sealer.Seal([]byte(tok.Value))
	if err != nil {
		return fmt.Errorf("failed to seal session token: %w", err)
	}

	return k.store.Sessions().SaveSession(ctx, Session{
		Profile:     profile,
		BaseURL:     baseURL,
		Username:    username,
		TokenSealed: sealed,
		ExpiresAt:   tok.ExpiresAt,
		UpdatedAt:   k.now().UTC(),
	})
}

// Load returns the live token saved under profile for baseURL and username.
// An empty username matches whichever agent the session belongs to. A
// missing, expired, foreign or undecryptable session reports ok=false; the
// latter three are also deleted.
func (k *SessionKeeper) Load(ctx context.Context, profile, baseURL, username string) (tok resclient.Token, ok bool, err error) {
	s, err := k.store.Sessions().GetSession(ctx, profile)
	if errors.Is(err, ErrNotFound) {
		return resclient.Token{}, false, nil
	}
	if err != nil {
		return resclient.Token{}, false, err
	}

	foreign := s.BaseURL != baseURL || (username != "" && s.Username != username)
	if foreign || !k.now().Before(s.ExpiresAt) {
		return resclient.Token{}, false, k.store.Sessions().DeleteSession(ctx, profile)
	}

	plain, err := k.sealer.Open(s.TokenSealed)
	if err != nil {
		// Sealed with a different secret
		return resclient.Token{}, false, k.store.Sessions().DeleteSession(ctx, profile)
	}

	return resclient.Token{Value: string(plain), ExpiresAt: s.ExpiresAt}, true, nil
}

// Forget deletes the session saved under profile.
func (k *SessionKeeper) Forget(ctx context.Context, profile string) error {
	return k.store.Sessions().DeleteSession(ctx, profile)
}

// Prune deletes every expired session.
func (k *SessionKeeper) Prune(ctx context.Context) (int64, error) {
	return k.store.Sessions().DeleteExpiredSessions(ctx, k.now())
}
