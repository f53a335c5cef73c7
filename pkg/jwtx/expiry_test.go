package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/skyres/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("issuer-secret"))
	require.NoError(t, err)
	return tok
}

func TestExpiryOf(t *testing.T) {
	exp := time.Unix(1900000000, 0).UTC()

	t.Run("reads exp without the key", func(t *testing.T) {
		tok := signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})

		got, err := jwtx.ExpiryOf(tok)
		require.NoError(t, err)
		require.True(t, exp.Equal(got))
	})

	t.Run("missing exp", func(t *testing.T) {
		tok := signed(t, jwt.RegisteredClaims{Subject: "agent"})

		_, err := jwtx.ExpiryOf(tok)
		require.ErrorIs(t, err, jwtx.ErrNoExpiry)
	})

	t.Run("opaque session token", func(t *testing.T) {
		_, err := jwtx.ExpiryOf("3f1c9a0e-opaque")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("three segments of garbage", func(t *testing.T) {
		_, err := jwtx.ExpiryOf("a.b.c")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}
