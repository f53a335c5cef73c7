package resclient

import (
	"sync"
	"time"
)

// Token is a bearer credential and its absolute expiry.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsZero reports whether t holds no credential.
func (t Token) IsZero() bool {
	return t.Value == ""
}

// TokenStore holds the single active bearer token of a Client. It is safe for
// concurrent use; every read sees either the old or the new token, never a
// mix of one's value and the other's expiry.
type TokenStore struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func NewTokenStore() *TokenStore {
	return &TokenStore{now: time.Now}
}

// SetToken replaces the held token. The value is opaque; an empty value is
// treated as clearing the store.
func (s *TokenStore) SetToken(token string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" {
		s.token, s.expiresAt = "", time.Time{}
		return
	}
	s.token, s.expiresAt = token, expiresAt
}

// Token returns the held token, expired or not.
func (s *TokenStore) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Expiry returns the expiry of the held token.
func (s *TokenStore) Expiry() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return time.Time{}, false
	}
	return s.expiresAt, true
}

// Snapshot returns the token and expiry as one consistent value.
func (s *TokenStore) Snapshot() (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return Token{}, false
	}
	return Token{Value: s.token, ExpiresAt: s.expiresAt}, true
}

// HasValidToken is true strictly before the expiry instant.
func (s *TokenStore) HasValidToken() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.now().Before(s.expiresAt)
}

// RemainingSeconds is the whole seconds left before expiry; 0 when absent or
// expired.
func (s *TokenStore) RemainingSeconds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return 0
	}
	left := s.expiresAt.Sub(s.now())
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// ClearToken forgets the held token.
func (s *TokenStore) ClearToken() {
	s.SetToken("", time.Time{})
}
