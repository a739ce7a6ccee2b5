package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/portal/internal/sandbox/domain"
	"github.com/aussiebroadwan/portal/pkg/idx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const maxChallengeAttempts = 5

var (
	ErrChallengeNotFound = errors.New("challenge not found or expired")
	ErrInvalidCode       = errors.New("invalid code")
	ErrTooManyAttempts   = errors.New("too many attempts")
)

// StepUpService runs the email 2FA challenges. Each challenge gets its own
// TOTP secret; the emailed code is the TOTP value for a period as long as
// the challenge TTL, so it stays valid for the challenge's whole life.
type StepUpService struct {
	Store  *Store
	Mailer Mailer
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

func (s *StepUpService) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    uint(s.TTL / time.Second),
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// Start creates a challenge for the account and emails the code.
func (s *StepUpService) Start(ctx context.Context, a domain.Account, issueSession, remember bool) (domain.Challenge, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: a.Email,
		Period:      uint(s.TTL / time.Second),
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("generate challenge secret: %w", err)
	}

	now := s.Now()
	code, err := totp.GenerateCodeCustom(key.Secret(), now, s.validateOpts())
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("generate challenge code: %w", err)
	}

	c := domain.Challenge{
		ID:           idx.NewAt(now).String(),
		AccountID:    a.ID,
		Secret:       key.Secret(),
		Email:        a.Email,
		Masked:       a.MaskedEmail(),
		IssueSession: issueSession,
		Remember:     remember,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.TTL),
	}
	s.Store.PutChallenge(c)

	if err := s.Mailer.Send(ctx, Message{
		To:      a.Email,
		Subject: "Seu código de verificação",
		Body:    "Use o código " + code + " para concluir o login.",
		Secret:  code,
	}); err != nil {
		return domain.Challenge{}, fmt.Errorf("send challenge code: %w", err)
	}
	return c, nil
}

// Confirm checks the code. A challenge is consumed by its first successful
// confirmation and dropped after maxChallengeAttempts failures.
func (s *StepUpService) Confirm(ctx context.Context, id, code string) (domain.Challenge, error) {
	if !idx.Valid(id) {
		return domain.Challenge{}, ErrChallengeNotFound
	}
	now := s.Now()
	var verdict error

	c, err := s.Store.UpdateChallenge(id, func(c *domain.Challenge) bool {
		if !now.Before(c.ExpiresAt) {
			verdict = ErrChallengeNotFound
			return true
		}

		ok, err := totp.ValidateCustom(code, c.Secret, now, s.validateOpts())
		if err == nil && ok {
			return true
		}

		c.Attempts++
		if c.Attempts >= maxChallengeAttempts {
			verdict = ErrTooManyAttempts
			return true
		}
		verdict = ErrInvalidCode
		return false
	})
	if errors.Is(err, ErrNotFound) {
		return domain.Challenge{}, ErrChallengeNotFound
	}
	if err != nil {
		return domain.Challenge{}, err
	}
	if verdict != nil {
		return domain.Challenge{}, verdict
	}
	return c, nil
}
