package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/portal/pkg/idx"
)

// DefaultAccessTokenTTL matches the portal API's one hour sessions.
const DefaultAccessTokenTTL = time.Hour

// Claims are the access token claims of the merchant API. Subject is the
// numeric account id.
type Claims struct {
	jwt.RegisteredClaims

	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`

	// Admin marks back-office operators.
	Admin bool `json:"admin,omitempty"`
}

// Principal is the account an access token speaks for.
type Principal struct {
	ID    string
	Email string
	Name  string
	Admin bool
}

// NewAccessClaims builds the claims of a token issued at now and valid for
// ttl. The jti is a ULID so tokens sort by issue time in logs.
func NewAccessClaims(p Principal, issuer string, now time.Time, ttl time.Duration) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        idx.NewAt(now).String(),
			Issuer:    issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: p.Email,
		Name:  p.Name,
		Admin: p.Admin,
	}
}
