package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface for state the CLI keeps between
// runs. Concrete drivers (sqlite) implement this.
type Store interface {
	Sessions() Sessions

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Session is a persisted bearer token. The token itself is only ever stored
// sealed; see SessionKeeper.
type Session struct {
	Profile     string
	BaseURL     string
	Username    string
	TokenSealed []byte
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Sessions interface {
	// GetSession returns the session saved under profile.
	GetSession(ctx context.Context, profile string) (Session, error)

	// SaveSession inserts or replaces the session for s.Profile. CreatedAt is
	// kept from the existing row on replace.
	SaveSession(ctx context.Context, s Session) error

	// DeleteSession removes the session for profile. Missing rows are not an
	// error.
	DeleteSession(ctx context.Context, profile string) error

	// DeleteExpiredSessions removes sessions that expired at or before now
	// and returns how many were removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}
