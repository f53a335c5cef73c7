package jwtx

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed = errors.New("jwtx: malformed token")
	ErrNoExpiry  = errors.New("jwtx: token has no exp claim")
)

// LooksLikeJWT reports whether token has the three dot-separated segments of
// a compact JWS. Reservation systems hand out either opaque session strings
// or JWTs, and only the latter carry an expiry we can read.
func LooksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

// ExpiryOf returns the exp claim of a JWT access token without verifying its
// signature. The client never holds the issuer's key; the value is only used
// to schedule refreshes, never to trust the token.
func ExpiryOf(token string) (time.Time, error) {
	if !LooksLikeJWT(token) {
		return time.Time{}, ErrMalformed
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, ErrMalformed
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}
