package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasherRoundTrip(t *testing.T) {
	t.Parallel()

	h := Hasher{Pepper: "pepper"}
	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 100)},
		{"empty password", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(tt.password)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))
			require.Len(t, strings.Split(hash, "$"), 6)

			require.NoError(t, h.Verify(tt.password, hash))
			require.ErrorIs(t, h.Verify(tt.password+"x", hash), ErrMismatch)
		})
	}
}

func TestHasherPepperMatters(t *testing.T) {
	t.Parallel()

	hash, err := Hasher{Pepper: "one"}.Hash("senha")
	require.NoError(t, err)
	require.ErrorIs(t, Hasher{Pepper: "two"}.Verify("senha", hash), ErrMismatch)
}

func TestHasherRejectsMalformedHashes(t *testing.T) {
	t.Parallel()

	h := Hasher{}
	for _, bad := range []string{
		"",
		"$bcrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=19456",
		"$argon2id$v=19$invalid$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$!!!",
		"$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA",
	} {
		require.ErrorIs(t, h.Verify("x", bad), ErrHashFormat, "hash %q", bad)
	}
}
