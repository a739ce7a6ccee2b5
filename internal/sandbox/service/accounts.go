package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/aussiebroadwan/portal/internal/sandbox/domain"
	"github.com/aussiebroadwan/portal/pkg/cryptox"
)

const resetTokenTTL = 30 * time.Minute

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

type AccountService struct {
	Store  *Store
	Hasher cryptox.Hasher
	Mailer Mailer
	Now    func() time.Time

	// ResetURL is the page the reset link points to; the token is appended.
	ResetURL string
}

// Register creates an account. Emails are unique, case-insensitively.
func (s *AccountService) Register(ctx context.Context, a domain.Account, password string) (domain.Account, error) {
	if _, err := mail.ParseAddress(a.Email); err != nil {
		return domain.Account{}, fmt.Errorf("%w: email", ErrInvalidInput)
	}
	if strings.TrimSpace(a.Nome) == "" {
		return domain.Account{}, fmt.Errorf("%w: nome", ErrInvalidInput)
	}
	if len(password) < 8 {
		return domain.Account{}, fmt.Errorf("%w: senha", ErrInvalidInput)
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.Now().UTC()
	a.Email = strings.TrimSpace(a.Email)
	a.PasswordHash = hash
	a.CreatedAt, a.UpdatedAt = now, now
	return s.Store.CreateAccount(a)
}

// Authenticate checks the email and password. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (domain.Account, error) {
	a, err := s.Store.AccountByEmail(email)
	if errors.Is(err, ErrNotFound) {
		// Same work either way, no account enumeration through timing
		_ = s.Hasher.Verify(password, dummyHash)
		return domain.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.Account{}, err
	}
	if err := s.Hasher.Verify(password, a.PasswordHash); err != nil {
		return domain.Account{}, ErrInvalidCredentials
	}
	return a, nil
}

func (s *AccountService) Get(ctx context.Context, id int64) (domain.Account, error) {
	return s.Store.AccountByID(id)
}

func (s *AccountService) List(ctx context.Context) []domain.Account {
	return s.Store.ListAccounts()
}

// Update replaces the profile fields of the account. A non-empty password
// is re-hashed; empty keeps the current one. complete marks the KYC wizard
// as finished.
func (s *AccountService) Update(ctx context.Context, in domain.Account, password string, complete bool) (domain.Account, error) {
	cur, err := s.Store.AccountByID(in.ID)
	if err != nil {
		return domain.Account{}, err
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return domain.Account{}, fmt.Errorf("%w: email", ErrInvalidInput)
	}

	in.PasswordHash = cur.PasswordHash
	if password != "" {
		if in.PasswordHash, err = s.Hasher.Hash(password); err != nil {
			return domain.Account{}, fmt.Errorf("hash password: %w", err)
		}
	}
	in.IsAdmin = cur.IsAdmin
	in.CadastroCompleto = cur.CadastroCompleto || complete
	in.CreatedAt = cur.CreatedAt
	in.UpdatedAt = s.Now().UTC()

	if err := s.Store.UpdateAccount(in); err != nil {
		return domain.Account{}, err
	}
	return in, nil
}

// ForgotPassword mails a reset link when the email is known. It never
// reports whether it was.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	a, err := s.Store.AccountByEmail(email)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	secret, err := cryptox.NewOpaque()
	if err != nil {
		return err
	}
	s.Store.PutGrant(domain.Grant{
		Fingerprint: secret.Fingerprint,
		Kind:        domain.GrantReset,
		AccountID:   a.ID,
		ExpiresAt:   s.Now().Add(resetTokenTTL),
	})

	return s.Mailer.Send(ctx, Message{
		To:      a.Email,
		Subject: "Redefinição de senha",
		Body:    "Para redefinir sua senha acesse: " + s.ResetURL + secret.Token,
		Secret:  secret.Token,
	})
}

// ValidateResetToken reports whether token can still reset a password.
func (s *AccountService) ValidateResetToken(ctx context.Context, token string) bool {
	_, err := s.resetGrant(token)
	return err == nil
}

// ResetPassword sets a new password and consumes the token.
func (s *AccountService) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: senha", ErrInvalidInput)
	}
	g, err := s.resetGrant(token)
	if err != nil {
		return err
	}

	a, err := s.Store.AccountByID(g.AccountID)
	if err != nil {
		return err
	}
	if a.PasswordHash, err = s.Hasher.Hash(password); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	a.UpdatedAt = s.Now().UTC()
	if err := s.Store.UpdateAccount(a); err != nil {
		return err
	}
	s.Store.DeleteGrant(g.Fingerprint)
	return nil
}

func (s *AccountService) resetGrant(token string) (domain.Grant, error) {
	if token == "" {
		return domain.Grant{}, ErrInvalidResetToken
	}
	g, err := s.Store.Grant(cryptox.Fingerprint(token))
	if err != nil || g.Kind != domain.GrantReset || !s.Now().Before(g.ExpiresAt) {
		return domain.Grant{}, ErrInvalidResetToken
	}
	return g, nil
}

// dummyHash is verified against when the email is unknown.
const dummyHash = "$argon2id$v=19$m=19456,t=2,p=1$c2FuZGJveHNhbmRib3g$0d8mCbzZ3nDTSm2kXyoFqv7mSuZMGuXb3jJ5JWhVmnE"
