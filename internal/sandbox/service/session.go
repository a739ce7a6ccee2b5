package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aussiebroadwan/portal/internal/sandbox/domain"
	"github.com/aussiebroadwan/portal/pkg/cryptox"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
)

var ErrInvalidGrant = errors.New("invalid or expired grant")

// Session is what a credential-issuing call hands back.
type Session struct {
	Account      domain.Account
	AccessToken  string
	ExpiresAt    time.Time
	RefreshToken string
}

// SessionService issues access tokens and manages the refresh and device
// trust grants behind the vp_refresh and vp_trust cookies.
type SessionService struct {
	Store      *Store
	Signer     jwtx.Signer
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	TrustTTL   time.Duration
	Now        func() time.Time
}

// Issue signs an access token and mints a new refresh grant.
func (s *SessionService) Issue(ctx context.Context, a domain.Account) (Session, error) {
	now := s.Now()
	claims := jwtx.NewAccessClaims(jwtx.Principal{
		ID:    strconv.FormatInt(a.ID, 10),
		Email: a.Email,
		Name:  a.Nome,
		Admin: a.IsAdmin,
	}, s.Issuer, now, s.AccessTTL)
	token, err := s.Signer.Sign(claims)
	if err != nil {
		return Session{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.mint(domain.GrantRefresh, a.ID, s.RefreshTTL)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Account:      a,
		AccessToken:  token,
		ExpiresAt:    claims.ExpiresAt.Time,
		RefreshToken: refresh,
	}, nil
}

// Refresh trades a refresh token, or failing that a device trust token,
// for a new session. A used refresh token is rotated out.
func (s *SessionService) Refresh(ctx context.Context, refreshToken, trustToken string) (Session, error) {
	var accountID int64

	if g, err := s.grant(domain.GrantRefresh, refreshToken); err == nil {
		s.Store.DeleteGrant(g.Fingerprint)
		accountID = g.AccountID
	} else if g, err := s.grant(domain.GrantDeviceTrust, trustToken); err == nil {
		accountID = g.AccountID
	} else {
		return Session{}, ErrInvalidGrant
	}

	a, err := s.Store.AccountByID(accountID)
	if err != nil {
		return Session{}, ErrInvalidGrant
	}
	return s.Issue(ctx, a)
}

// Revoke drops a refresh token. Unknown tokens are ignored.
func (s *SessionService) Revoke(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	s.Store.DeleteGrant(cryptox.Fingerprint(refreshToken))
}

// TrustDevice mints a device trust token for the account.
func (s *SessionService) TrustDevice(ctx context.Context, accountID int64) (string, error) {
	return s.mint(domain.GrantDeviceTrust, accountID, s.TrustTTL)
}

// IsTrusted reports whether token is a live device trust grant for the
// account.
func (s *SessionService) IsTrusted(ctx context.Context, accountID int64, token string) bool {
	g, err := s.grant(domain.GrantDeviceTrust, token)
	return err == nil && g.AccountID == accountID
}

func (s *SessionService) mint(kind domain.GrantKind, accountID int64, ttl time.Duration) (string, error) {
	secret, err := cryptox.NewOpaque()
	if err != nil {
		return "", err
	}
	s.Store.PutGrant(domain.Grant{
		Fingerprint: secret.Fingerprint,
		Kind:        kind,
		AccountID:   accountID,
		ExpiresAt:   s.Now().Add(ttl),
	})
	return secret.Token, nil
}

func (s *SessionService) grant(kind domain.GrantKind, token string) (domain.Grant, error) {
	if token == "" {
		return domain.Grant{}, ErrInvalidGrant
	}
	g, err := s.Store.Grant(cryptox.Fingerprint(token))
	if err != nil || g.Kind != kind || !s.Now().Before(g.ExpiresAt) {
		return domain.Grant{}, ErrInvalidGrant
	}
	return g, nil
}
