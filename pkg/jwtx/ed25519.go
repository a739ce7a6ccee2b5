package jwtx

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer turns claims into a compact JWT.
type Signer interface {
	KID() string
	Sign(Claims) (string, error)
	Public() ed25519.PublicKey
}

// Verifier checks a compact JWT and returns its claims.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// EdDSASigner signs with one Ed25519 key, named by kid in the JOSE header.
type EdDSASigner struct {
	kid string
	key ed25519.PrivateKey
}

// NewSignerEdDSA loads a PKCS8 "PRIVATE KEY" PEM block holding an Ed25519
// key.
func NewSignerEdDSA(kid string, pemKey []byte) (*EdDSASigner, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil || block.Type != "PRIVATE KEY" {
		return nil, errors.New("jwtx: want a PKCS8 PRIVATE KEY PEM block")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("jwtx: %T is not an Ed25519 key", parsed)
	}
	return &EdDSASigner{kid: kid, key: key}, nil
}

func (s *EdDSASigner) KID() string { return s.kid }

func (s *EdDSASigner) Public() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

func (s *EdDSASigner) Sign(c Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, c)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

// EdDSAVerifier accepts tokens signed by one Ed25519 key. An exp claim is
// required; iss is checked when an issuer is configured.
type EdDSAVerifier struct {
	pub    ed25519.PublicKey
	parser *jwt.Parser
}

// NewVerifierEdDSA builds a verifier judging expiry against now, or the
// wall clock when now is nil.
func NewVerifierEdDSA(pub ed25519.PublicKey, issuer string, now func() time.Time) *EdDSAVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if now != nil {
		opts = append(opts, jwt.WithTimeFunc(now))
	}
	return &EdDSAVerifier{pub: pub, parser: jwt.NewParser(opts...)}
}

func (v *EdDSAVerifier) Verify(token string) (Claims, error) {
	var c Claims
	_, err := v.parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return v.pub, nil
	})
	if err != nil {
		return Claims{}, classify(err)
	}
	return c, nil
}
