package domain

import "time"

// GrantKind tells apart the opaque tokens the sandbox hands out.
type GrantKind string

const (
	GrantRefresh     GrantKind = "refresh"      // vp_refresh cookie
	GrantDeviceTrust GrantKind = "device_trust" // vp_trust cookie
	GrantReset       GrantKind = "reset"        // password reset link
)

// Grant is an opaque token, stored by fingerprint only.
type Grant struct {
	Fingerprint string
	Kind        GrantKind
	AccountID   int64
	ExpiresAt   time.Time
}

// Challenge is a pending step-up verification. The code sent by email is
// the TOTP value of Secret at the time the challenge was started.
type Challenge struct {
	ID        string // ULID
	AccountID int64
	Secret    string // base32 TOTP secret
	Email     string
	Masked    string

	// IssueSession is set for challenges raised by a login, whose
	// confirmation returns the session directly.
	IssueSession bool
	Remember     bool

	Attempts  int // failed confirmations, max 5
	CreatedAt time.Time
	ExpiresAt time.Time
}
