package cryptox

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewOpaque(t *testing.T) {
	t.Parallel()

	a, err := NewOpaque()
	require.NoError(t, err)
	b, err := NewOpaque()
	require.NoError(t, err)

	require.NotEqual(t, a.Token, b.Token)
	require.Len(t, a.Token, 43, "256 bits, unpadded base64url")
	require.Equal(t, Fingerprint(a.Token), a.Fingerprint)
	require.NotEqual(t, a.Token, a.Fingerprint)
	require.NotEqual(t, a.Fingerprint, b.Fingerprint)
}

func TestNewSigningKeyPEM(t *testing.T) {
	t.Parallel()

	raw, err := NewSigningKeyPEM()
	require.NoError(t, err)

	block, rest := pem.Decode(raw)
	require.NotNil(t, block)
	require.Empty(t, rest)
	require.Equal(t, "PRIVATE KEY", block.Type)

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	require.NoError(t, err)
	require.IsType(t, ed25519.PrivateKey{}, key)
}
