package cryptox

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
)

// opaqueSize is the entropy of an opaque token in bytes.
const opaqueSize = 32

// Opaque is a random bearer secret handed to a client in a cookie or an
// email. The server keeps only the Fingerprint.
type Opaque struct {
	Token       string
	Fingerprint string
}

func NewOpaque() (Opaque, error) {
	var buf [opaqueSize]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return Opaque{}, fmt.Errorf("cryptox: read random: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf[:])
	return Opaque{Token: token, Fingerprint: Fingerprint(token)}, nil
}

// Fingerprint is the lookup key of a token: its SHA-256, base64url encoded.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// NewSigningKeyPEM returns a fresh Ed25519 private key as a PKCS#8 PEM
// block, the form the jwtx signer loads.
func NewSigningKeyPEM() ([]byte, error) {
	_, key, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("cryptox: generate signing key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: marshal signing key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
