package cryptox_test

import (
	"testing"

	"github.com/aussiebroadwan/skyres/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	s, err := cryptox.NewSealer([]byte("master-secret"), []byte("profile-default"))
	require.NoError(t, err)

	plaintext := []byte("bearer-token-value")

	sealed1, err := s.Seal(plaintext)
	require.NoError(t, err)
	sealed2, err := s.Seal(plaintext)
	require.NoError(t, err)
	require.NotEqual(t, sealed1, sealed2, "nonce must differ per seal")

	opened, err := s.Open(sealed1)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestOpenWithDifferentSecretFails(t *testing.T) {
	a, err := cryptox.NewSealer([]byte("secret-a"), []byte("salt"))
	require.NoError(t, err)
	b, err := cryptox.NewSealer([]byte("secret-b"), []byte("salt"))
	require.NoError(t, err)

	sealed, err := a.Seal([]byte("token"))
	require.NoError(t, err)

	_, err = b.Open(sealed)
	require.Error(t, err)
}

func TestSealerRestartStable(t *testing.T) {
	a, err := cryptox.NewSealer([]byte("secret"), []byte("salt"))
	require.NoError(t, err)
	sealed, err := a.Seal([]byte("token"))
	require.NoError(t, err)

	// A second sealer from the same inputs stands in for a process restart
	b, err := cryptox.NewSealer([]byte("secret"), []byte("salt"))
	require.NoError(t, err)
	opened, err := b.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, []byte("token"), opened)
}

func TestSealerErrors(t *testing.T) {
	_, err := cryptox.NewSealer(nil, []byte("salt"))
	require.ErrorIs(t, err, cryptox.ErrEmptySecret)

	s, err := cryptox.NewSealer([]byte("secret"), nil)
	require.NoError(t, err)
	_, err = s.Open([]byte("short"))
	require.ErrorIs(t, err, cryptox.ErrCiphertextLength)
}

func TestFingerprintToken(t *testing.T) {
	require.Empty(t, cryptox.FingerprintToken(""))
	require.Equal(t, cryptox.FingerprintToken("abc"), cryptox.FingerprintToken("abc"))
	require.NotEqual(t, cryptox.FingerprintToken("abc"), cryptox.FingerprintToken("abd"))
	require.Len(t, cryptox.FingerprintToken("abc"), 11)
}
