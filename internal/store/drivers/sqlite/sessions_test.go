package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/skyres/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestApplyMigrationsIdempotent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestSessionsRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	repo := s.Sessions()

	_, err := repo.GetSession(ctx, "default")
	require.ErrorIs(t, err, store.ErrNotFound)

	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	in := store.Session{
		Profile:     "default",
		BaseURL:     "https://api.example.com",
		Username:    "agent",
		TokenSealed: []byte{0x01, 0x02, 0x03},
		ExpiresAt:   created.Add(time.Hour),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	require.NoError(t, repo.SaveSession(ctx, in))

	got, err := repo.GetSession(ctx, "default")
	require.NoError(t, err)
	require.Equal(t, in.Profile, got.Profile)
	require.Equal(t, in.BaseURL, got.BaseURL)
	require.Equal(t, in.Username, got.Username)
	require.Equal(t, in.TokenSealed, got.TokenSealed)
	require.True(t, in.ExpiresAt.Equal(got.ExpiresAt))
	require.True(t, in.CreatedAt.Equal(got.CreatedAt))

	t.Run("replace keeps created at", func(t *testing.T) {
		updated := created.Add(10 * time.Minute)
		require.NoError(t, repo.SaveSession(ctx, store.Session{
			Profile:     "default",
			BaseURL:     "https://api.example.com",
			Username:    "agent",
			TokenSealed: []byte{0x04},
			ExpiresAt:   updated.Add(time.Hour),
			CreatedAt:   updated,
			UpdatedAt:   updated,
		}))

		got, err := repo.GetSession(ctx, "default")
		require.NoError(t, err)
		require.Equal(t, []byte{0x04}, got.TokenSealed)
		require.True(t, created.Equal(got.CreatedAt))
		require.True(t, updated.Equal(got.UpdatedAt))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteSession(ctx, "default"))
		_, err := repo.GetSession(ctx, "default")
		require.ErrorIs(t, err, store.ErrNotFound)

		// Deleting again is fine
		require.NoError(t, repo.DeleteSession(ctx, "default"))
	})
}

func TestDeleteExpiredSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestStore(t).Sessions()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for profile, expiry := range map[string]time.Time{
		"expired": now.Add(-time.Minute),
		"exact":   now,
		"live":    now.Add(time.Minute),
	} {
		require.NoError(t, repo.SaveSession(ctx, store.Session{
			Profile:     profile,
			BaseURL:     "https://api.example.com",
			TokenSealed: []byte("x"),
			ExpiresAt:   expiry,
		}))
	}

	n, err := repo.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	_, err = repo.GetSession(ctx, "live")
	require.NoError(t, err)
	_, err = repo.GetSession(ctx, "exact")
	require.ErrorIs(t, err, store.ErrNotFound)
}
