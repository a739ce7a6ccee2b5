package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/portal/internal/sandbox/domain"
	"github.com/aussiebroadwan/portal/pkg/cryptox"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// clock is a settable time source.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func newAccounts(t *testing.T, st *Store, c *clock) (*AccountService, *MemoryMailer) {
	t.Helper()
	mailer := &MemoryMailer{}
	return &AccountService{
		Store:    st,
		Hasher:   cryptox.Hasher{Pepper: "test"},
		Mailer:   mailer,
		Now:      c.Now,
		ResetURL: "http://portal.test/reset?token=",
	}, mailer
}

func mustRegister(t *testing.T, s *AccountService, email string) domain.Account {
	t.Helper()
	a, err := s.Register(context.Background(), domain.Account{Email: email, Nome: "Ana"}, "senha-segura")
	require.NoError(t, err)
	return a
}

func TestAccountService(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("register then authenticate", func(t *testing.T) {
		t.Parallel()
		s, _ := newAccounts(t, NewStore(), newClock())
		a := mustRegister(t, s, "ana@loja.com")
		require.NotZero(t, a.ID)
		require.NotEqual(t, "senha-segura", a.PasswordHash)

		got, err := s.Authenticate(ctx, "ANA@loja.com", "senha-segura")
		require.NoError(t, err)
		require.Equal(t, a.ID, got.ID)

		_, err = s.Authenticate(ctx, "ana@loja.com", "errada")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = s.Authenticate(ctx, "ninguem@loja.com", "senha-segura")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("duplicate email", func(t *testing.T) {
		t.Parallel()
		s, _ := newAccounts(t, NewStore(), newClock())
		mustRegister(t, s, "ana@loja.com")
		_, err := s.Register(ctx, domain.Account{Email: "Ana@Loja.com", Nome: "Outra"}, "senha-segura")
		require.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("rejects short password", func(t *testing.T) {
		t.Parallel()
		s, _ := newAccounts(t, NewStore(), newClock())
		_, err := s.Register(ctx, domain.Account{Email: "ana@loja.com", Nome: "Ana"}, "curta")
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("password reset", func(t *testing.T) {
		t.Parallel()
		c := newClock()
		s, mailer := newAccounts(t, NewStore(), c)
		mustRegister(t, s, "ana@loja.com")

		require.NoError(t, s.ForgotPassword(ctx, "ana@loja.com"))
		msg, ok := mailer.Last("ana@loja.com")
		require.True(t, ok)
		require.True(t, strings.HasSuffix(msg.Body, msg.Secret))
		require.True(t, s.ValidateResetToken(ctx, msg.Secret))

		require.NoError(t, s.ResetPassword(ctx, msg.Secret, "nova-senha-1"))
		require.False(t, s.ValidateResetToken(ctx, msg.Secret), "token is single use")

		_, err := s.Authenticate(ctx, "ana@loja.com", "nova-senha-1")
		require.NoError(t, err)
	})

	t.Run("reset token expires", func(t *testing.T) {
		t.Parallel()
		c := newClock()
		s, mailer := newAccounts(t, NewStore(), c)
		mustRegister(t, s, "ana@loja.com")

		require.NoError(t, s.ForgotPassword(ctx, "ana@loja.com"))
		msg, _ := mailer.Last("ana@loja.com")
		c.Advance(resetTokenTTL)
		require.ErrorIs(t, s.ResetPassword(ctx, msg.Secret, "nova-senha-1"), ErrInvalidResetToken)
	})

	t.Run("forgot password for unknown email sends nothing", func(t *testing.T) {
		t.Parallel()
		s, mailer := newAccounts(t, NewStore(), newClock())
		require.NoError(t, s.ForgotPassword(ctx, "ninguem@loja.com"))
		_, ok := mailer.Last("ninguem@loja.com")
		require.False(t, ok)
	})

	t.Run("update keeps password and admin flag", func(t *testing.T) {
		t.Parallel()
		s, _ := newAccounts(t, NewStore(), newClock())
		a := mustRegister(t, s, "ana@loja.com")

		up, err := s.Update(ctx, domain.Account{ID: a.ID, Email: a.Email, Nome: "Ana Souza", IsAdmin: true}, "", true)
		require.NoError(t, err)
		require.Equal(t, "Ana Souza", up.Nome)
		require.False(t, up.IsAdmin)
		require.True(t, up.CadastroCompleto)

		_, err = s.Authenticate(ctx, "ana@loja.com", "senha-segura")
		require.NoError(t, err)
	})
}

func TestStepUpService(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	setup := func(t *testing.T) (*StepUpService, *MemoryMailer, *clock, domain.Account) {
		c := newClock()
		st := NewStore()
		accounts, mailer := newAccounts(t, st, c)
		a := mustRegister(t, accounts, "ana@loja.com")
		return &StepUpService{
			Store:  st,
			Mailer: mailer,
			Issuer: "portal-sandbox",
			TTL:    10 * time.Minute,
			Now:    c.Now,
		}, mailer, c, a
	}

	t.Run("emailed code confirms once", func(t *testing.T) {
		t.Parallel()
		s, mailer, c, a := setup(t)

		ch, err := s.Start(ctx, a, true, false)
		require.NoError(t, err)
		require.Equal(t, "a***@loja.com", ch.Masked)

		msg, ok := mailer.Last(a.Email)
		require.True(t, ok)
		require.Len(t, msg.Secret, 6)

		c.Advance(9 * time.Minute)
		got, err := s.Confirm(ctx, ch.ID, msg.Secret)
		require.NoError(t, err)
		require.True(t, got.IssueSession)
		require.False(t, got.Remember)

		_, err = s.Confirm(ctx, ch.ID, msg.Secret)
		require.ErrorIs(t, err, ErrChallengeNotFound)
	})

	t.Run("wrong code then lockout", func(t *testing.T) {
		t.Parallel()
		s, mailer, _, a := setup(t)

		ch, err := s.Start(ctx, a, false, false)
		require.NoError(t, err)
		msg, _ := mailer.Last(a.Email)
		wrong := "000000"
		if msg.Secret == wrong {
			wrong = "111111"
		}

		for range maxChallengeAttempts - 1 {
			_, err = s.Confirm(ctx, ch.ID, wrong)
			require.ErrorIs(t, err, ErrInvalidCode)
		}
		_, err = s.Confirm(ctx, ch.ID, wrong)
		require.ErrorIs(t, err, ErrTooManyAttempts)

		_, err = s.Confirm(ctx, ch.ID, msg.Secret)
		require.ErrorIs(t, err, ErrChallengeNotFound)
	})

	t.Run("expired challenge", func(t *testing.T) {
		t.Parallel()
		s, mailer, c, a := setup(t)

		ch, err := s.Start(ctx, a, false, false)
		require.NoError(t, err)
		msg, _ := mailer.Last(a.Email)

		c.Advance(10 * time.Minute)
		_, err = s.Confirm(ctx, ch.ID, msg.Secret)
		require.ErrorIs(t, err, ErrChallengeNotFound)
	})
}

func TestSessionService(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	setup := func(t *testing.T) (*SessionService, *clock, domain.Account) {
		pemKey, err := cryptox.NewSigningKeyPEM()
		require.NoError(t, err)
		signer, err := jwtx.NewSignerEdDSA("test", pemKey)
		require.NoError(t, err)

		c := &clock{t: time.Now()}
		st := NewStore()
		accounts, _ := newAccounts(t, st, c)
		a := mustRegister(t, accounts, "ana@loja.com")
		return &SessionService{
			Store:      st,
			Signer:     signer,
			Issuer:     "portal-sandbox",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
			TrustTTL:   48 * time.Hour,
			Now:        c.Now,
		}, c, a
	}

	t.Run("issue signs a token for the account", func(t *testing.T) {
		t.Parallel()
		s, c, a := setup(t)

		sess, err := s.Issue(ctx, a)
		require.NoError(t, err)
		require.NotEmpty(t, sess.RefreshToken)

		exp, ok := jwtx.UnverifiedExpiry(sess.AccessToken)
		require.True(t, ok)
		require.WithinDuration(t, c.Now().Add(time.Hour), exp, time.Second)
	})

	t.Run("refresh rotates the refresh token", func(t *testing.T) {
		t.Parallel()
		s, _, a := setup(t)

		sess, err := s.Issue(ctx, a)
		require.NoError(t, err)

		next, err := s.Refresh(ctx, sess.RefreshToken, "")
		require.NoError(t, err)
		require.NotEqual(t, sess.RefreshToken, next.RefreshToken)

		_, err = s.Refresh(ctx, sess.RefreshToken, "")
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("trust token is a fallback", func(t *testing.T) {
		t.Parallel()
		s, c, a := setup(t)

		trust, err := s.TrustDevice(ctx, a.ID)
		require.NoError(t, err)
		require.True(t, s.IsTrusted(ctx, a.ID, trust))
		require.False(t, s.IsTrusted(ctx, a.ID+1, trust))

		sess, err := s.Refresh(ctx, "", trust)
		require.NoError(t, err)
		require.Equal(t, a.ID, sess.Account.ID)

		c.Advance(48 * time.Hour)
		_, err = s.Refresh(ctx, "", trust)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("revoke", func(t *testing.T) {
		t.Parallel()
		s, _, a := setup(t)

		sess, err := s.Issue(ctx, a)
		require.NoError(t, err)
		s.Revoke(ctx, sess.RefreshToken)
		s.Revoke(ctx, "")

		_, err = s.Refresh(ctx, sess.RefreshToken, "")
		require.ErrorIs(t, err, ErrInvalidGrant)
	})
}

func TestResources(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	owner := Caller{AccountID: 1}
	other := Caller{AccountID: 2}
	admin := Caller{AccountID: 3, Admin: true}

	t.Run("transfer fee", func(t *testing.T) {
		t.Parallel()
		c := newClock()
		s := &TransferService{Store: NewStore(), Now: c.Now, FeeRate: decimal.RequireFromString("0.02")}

		tr, err := s.Create(ctx, owner, "Ana", portalsdk.TransferCreate{
			ValorSolicitado: decimal.RequireFromString("150.55"),
			ChavePix:        "ana@loja.com",
		})
		require.NoError(t, err)
		require.Equal(t, "3.01", tr.Taxa.StringFixed(2))
		require.Equal(t, "147.54", tr.ValorFinal.StringFixed(2))
		require.Equal(t, portalsdk.TransferPendente, tr.Status)

		_, err = s.Create(ctx, owner, "Ana", portalsdk.TransferCreate{ValorSolicitado: decimal.Zero, ChavePix: "x"})
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("transfer status is admin only", func(t *testing.T) {
		t.Parallel()
		s := &TransferService{Store: NewStore(), Now: newClock().Now, FeeRate: decimal.Zero}
		tr, err := s.Create(ctx, owner, "Ana", portalsdk.TransferCreate{
			ValorSolicitado: decimal.NewFromInt(10),
			ChavePix:        "pix",
		})
		require.NoError(t, err)

		_, err = s.UpdateStatus(ctx, owner, tr.ID, portalsdk.TransferAprovada)
		require.ErrorIs(t, err, ErrForbidden)

		got, err := s.UpdateStatus(ctx, admin, tr.ID, portalsdk.TransferAprovada)
		require.NoError(t, err)
		require.Equal(t, portalsdk.TransferAprovada, got.Status)
	})

	t.Run("orders are scoped to the seller", func(t *testing.T) {
		t.Parallel()
		s := &OrderService{Store: NewStore(), Now: newClock().Now}
		for range 3 {
			_, err := s.Create(ctx, owner, portalsdk.OrderCreate{Valor: decimal.NewFromInt(10), Metodo: "pix"})
			require.NoError(t, err)
		}
		o, err := s.Create(ctx, other, portalsdk.OrderCreate{Valor: decimal.NewFromInt(5), Metodo: "boleto"})
		require.NoError(t, err)

		items, total := s.List(ctx, owner, OrderQuery{Page: 1, Size: 2})
		require.Equal(t, 3, total)
		require.Len(t, items, 2)
		require.Greater(t, items[0].ID, items[1].ID)

		_, total = s.List(ctx, admin, OrderQuery{Metodo: "boleto"})
		require.Equal(t, 1, total)

		_, err = s.Get(ctx, owner, o.ID)
		require.ErrorIs(t, err, ErrNotFound)

		_, err = s.UpdateStatus(ctx, other, o.ID, portalsdk.OrderStatus(99))
		require.ErrorIs(t, err, ErrInvalidInput)
		got, err := s.UpdateStatus(ctx, other, o.ID, portalsdk.OrderPago)
		require.NoError(t, err)
		require.Equal(t, portalsdk.OrderPago, got.Status)
	})

	t.Run("webhooks", func(t *testing.T) {
		t.Parallel()
		s := &WebhookService{Store: NewStore(), Now: newClock().Now}
		require.NotNil(t, s.List(ctx, owner))

		w, err := s.Create(ctx, owner, WebhookInput{
			URL:     "loja.com/hook",
			Ativo:   true,
			Secret:  "s3cr3t",
			Eventos: []string{"PixGerado", "Estorno"},
		})
		require.NoError(t, err)
		require.Equal(t, "https://loja.com/hook", w.URL)
		require.True(t, w.HasSecret)
		require.Equal(t, 1<<1|1<<4, w.EventosMask)

		_, err = s.Create(ctx, owner, WebhookInput{URL: "x", Eventos: []string{"Nope"}})
		require.ErrorIs(t, err, ErrInvalidInput)

		up, err := s.Update(ctx, owner, w.ID, WebhookInput{URL: "https://loja.com/v2", Eventos: []string{"Chargeback"}})
		require.NoError(t, err)
		require.True(t, up.HasSecret, "empty secret keeps the current one")
		require.False(t, up.Ativo)

		require.ErrorIs(t, s.Delete(ctx, other, w.ID), ErrNotFound)
		require.NoError(t, s.Delete(ctx, owner, w.ID))
		require.Empty(t, s.List(ctx, owner))
	})
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	items := []int{1, 2, 3, 4, 5}
	require.Equal(t, []int{1, 2}, paginate(items, 1, 2))
	require.Equal(t, []int{5}, paginate(items, 3, 2))
	require.Equal(t, []int{}, paginate(items, 4, 2))
	require.Equal(t, items, paginate(items, 0, 0))
}

func TestHousekeepingCleanup(t *testing.T) {
	t.Parallel()

	c := newClock()
	st := NewStore()
	st.PutChallenge(domain.Challenge{ID: "old", ExpiresAt: c.Now().Add(time.Minute)})
	st.PutChallenge(domain.Challenge{ID: "new", ExpiresAt: c.Now().Add(time.Hour)})
	st.PutGrant(domain.Grant{Fingerprint: "g", ExpiresAt: c.Now().Add(time.Minute)})

	hk := NewHousekeepingService(st, slogx.Discard(), 0)
	require.Equal(t, 10*time.Minute, hk.Interval)
	hk.Now = c.Now

	c.Advance(2 * time.Minute)
	hk.Cleanup()

	_, err := st.UpdateChallenge("old", func(*domain.Challenge) bool { return false })
	require.ErrorIs(t, err, ErrNotFound)
	_, err = st.UpdateChallenge("new", func(*domain.Challenge) bool { return false })
	require.NoError(t, err)
	_, err = st.Grant("g")
	require.ErrorIs(t, err, ErrNotFound)
}
