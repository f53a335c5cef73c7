package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/skyres/internal/store"
)

type sessionsRepo struct {
	db dbtx
}

const getSession = `
SELECT profile, base_url, username, token_sealed, expires_at, created_at, updated_at
FROM sessions
WHERE profile = ?`

func (r *sessionsRepo) GetSession(ctx context.Context, profile string) (store.Session, error) {
	var s store.Session
	err := r.db.QueryRowContext(ctx, getSession, profile).Scan(
		&s.Profile,
		&s.BaseURL,
		&s.Username,
		&s.TokenSealed,
		&s.ExpiresAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return store.Session{}, mapNotFound(err)
	}
	return s, nil
}

const saveSession = `
INSERT INTO sessions (profile, base_url, username, token_sealed, expires_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (profile) DO UPDATE SET
    base_url     = excluded.base_url,
    username     = excluded.username,
    token_sealed = excluded.token_sealed,
    expires_at   = excluded.expires_at,
    updated_at   = excluded.updated_at`

func (r *sessionsRepo) SaveSession(ctx context.Context, s store.Session) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx, saveSession,
		s.Profile,
		s.BaseURL,
		s.Username,
		s.TokenSealed,
		s.ExpiresAt.UTC(),
		s.CreatedAt.UTC(),
		s.UpdatedAt.UTC(),
	)
	return err
}

const deleteSession = `DELETE FROM sessions WHERE profile = ?`

func (r *sessionsRepo) DeleteSession(ctx context.Context, profile string) error {
	_, err := r.db.ExecContext(ctx, deleteSession, profile)
	return err
}

const deleteExpiredSessions = `DELETE FROM sessions WHERE expires_at <= ?`

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteExpiredSessions, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
