package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/portal/pkg/idx"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestNewAccessClaims(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c := jwtx.NewAccessClaims(jwtx.Principal{ID: "42", Email: "ana@loja.com", Name: "Ana", Admin: true}, "portal-api", now, time.Minute)

	require.Equal(t, "42", c.Subject)
	require.Equal(t, "portal-api", c.Issuer)
	require.True(t, now.Equal(c.IssuedAt.Time))
	require.True(t, now.Add(time.Minute).Equal(c.ExpiresAt.Time))
	require.True(t, c.Admin)
	require.True(t, idx.Valid(c.ID))
	require.True(t, now.Equal(idx.ID(c.ID).Time()))
}

func TestUnverifiedExpiry(t *testing.T) {
	t.Run("reads exp from unsigned payload", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"exp": 1_900_000_000})
		raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		exp, ok := jwtx.UnverifiedExpiry(raw)
		require.True(t, ok)
		require.Equal(t, int64(1_900_000_000_000), exp.UnixMilli())
	})

	t.Run("missing exp", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1"})
		raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, ok := jwtx.UnverifiedExpiry(raw)
		require.False(t, ok)
	})

	t.Run("not a jwt", func(t *testing.T) {
		for _, s := range []string{"", "opaque-token", "a.b", "a.!!!.c", "a.b.c.d"} {
			_, ok := jwtx.UnverifiedExpiry(s)
			require.False(t, ok, "token %q", s)
		}
	})

	t.Run("non numeric exp", func(t *testing.T) {
		// {"exp":"soon"}
		_, ok := jwtx.UnverifiedExpiry("e30.eyJleHAiOiJzb29uIn0.sig")
		require.False(t, ok)
	})
}
