package portalsdk_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/portal/internal/sandbox/app"
	"github.com/aussiebroadwan/portal/internal/sandbox/service"
	"github.com/aussiebroadwan/portal/pkg/credstore"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

const (
	email    = "ana@loja.com"
	password = "senha-segura"
)

var open = httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Second, Burst: 1000}

type sandbox struct {
	app    *app.Application
	url    string
	mailer *service.MemoryMailer
}

func newSandbox(t *testing.T, requireStepUp bool) *sandbox {
	t.Helper()

	mailer := &service.MemoryMailer{}
	a, err := app.New(app.Config{
		RequireStepUp: requireStepUp,
		Logger:        slogx.Discard(),
		Mailer:        mailer,
		LoginLimit:    &open,
		ResourceLimit: &open,
	})
	require.NoError(t, err)
	_, err = a.Seed(context.Background(), email, password, false)
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return &sandbox{app: a, url: srv.URL, mailer: mailer}
}

// code returns the last 2FA code mailed to the test account.
func (s *sandbox) code(t *testing.T) string {
	t.Helper()
	msg, ok := s.mailer.Last(email)
	require.True(t, ok)
	return msg.Secret
}

func newStore() *credstore.Store {
	return credstore.New(credstore.Options{
		Durable:              credstore.NewMemoryKV(),
		Ephemeral:            credstore.NewMemoryKV(),
		HasPersistentStorage: true,
		Logger:               slogx.Discard(),
	})
}

type navRecorder struct{ paths []string }

func (n *navRecorder) HardNavigate(path string) { n.paths = append(n.paths, path) }

func newClient(t *testing.T, sb *sandbox, store *credstore.Store, nav portalsdk.Navigator) *portalsdk.Client {
	t.Helper()
	c, err := portalsdk.NewClient(portalsdk.Config{
		BaseURL:       sb.url,
		Store:         store,
		Navigator:     nav,
		Logger:        slogx.Discard(),
		LoginThrottle: &open,
	})
	require.NoError(t, err)
	return c
}

func TestLoginRememberSurvivesRestart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sb := newSandbox(t, false)
	store := newStore()

	c := newClient(t, sb, store, nil)
	var events []bool
	cancel := c.Auth().Subscribe(func(_ portalsdk.User, loggedIn bool) { events = append(events, loggedIn) })
	defer cancel()

	res, err := c.Auth().LoginSmart(ctx, portalsdk.Credentials{Email: email, Password: password, Remember: true})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.Status)
	require.NotNil(t, res.Session)
	require.Nil(t, res.Challenge)
	require.Equal(t, credstore.Durable, store.ScopeOf())
	require.Equal(t, []bool{true}, events)

	u, ok := c.Auth().User()
	require.True(t, ok)
	require.Equal(t, email, u.Email)

	restarted := newClient(t, sb, store, nil)
	require.True(t, restarted.Auth().IsLoggedIn())
	tok, ok := restarted.Auth().Token()
	require.True(t, ok)
	require.Equal(t, res.Session.Token, tok)

	// the bearer reaches resource endpoints
	id, err := u.ID.Int64()
	require.NoError(t, err)
	me, err := restarted.GetUser(ctx, id)
	require.NoError(t, err)
	require.Equal(t, email, me.Email)
}

func TestLoginWithoutRememberIsEphemeral(t *testing.T) {
	t.Parallel()
	sb := newSandbox(t, false)
	store := newStore()
	c := newClient(t, sb, store, nil)

	_, err := c.Auth().LoginSmart(context.Background(), portalsdk.Credentials{Email: email, Password: password})
	require.NoError(t, err)
	require.Equal(t, credstore.Ephemeral, store.ScopeOf())
}

func TestLoginWrongPassword(t *testing.T) {
	t.Parallel()
	sb := newSandbox(t, false)
	store := newStore()
	c := newClient(t, sb, store, nil)

	_, err := c.Auth().LoginSmart(context.Background(), portalsdk.Credentials{Email: email, Password: "errada"})
	apiErr, ok := portalsdk.IsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "E-mail ou senha inválidos.", apiErr.Message)
	require.False(t, c.Auth().IsLoggedIn())
	require.Equal(t, credstore.ScopeNone, store.ScopeOf())
}

func TestSmartLoginStepUp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sb := newSandbox(t, true)
	store := newStore()
	c := newClient(t, sb, store, nil)

	res, err := c.Auth().LoginSmart(ctx, portalsdk.Credentials{Email: email, Password: password})
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, res.Status)
	require.NotNil(t, res.Challenge)
	require.Nil(t, res.Session)
	require.Equal(t, "a***@loja.com", res.Challenge.MaskedEmail)

	_, ok := store.Read()
	require.False(t, ok, "a challenge writes nothing")
	require.False(t, c.Auth().IsLoggedIn())

	t.Run("short code fails before the network", func(t *testing.T) {
		err := c.Auth().Confirm2FA(ctx, res.Challenge.ChallengeID, "12 34")
		require.ErrorIs(t, err, portalsdk.ErrInvalidCode)
	})

	t.Run("wrong code keeps the challenge pending", func(t *testing.T) {
		wrong := "000000"
		if sb.code(t) == wrong {
			wrong = "111111"
		}
		err := c.Auth().Confirm2FA(ctx, res.Challenge.ChallengeID, wrong)
		require.ErrorIs(t, err, portalsdk.Err2FAFailed)
		apiErr, _ := portalsdk.IsAPIError(err)
		require.Equal(t, "Código inválido.", apiErr.Message)
		require.False(t, c.Auth().IsLoggedIn())
	})

	t.Run("formatted code confirms", func(t *testing.T) {
		code := sb.code(t)
		formatted := code[:2] + "-" + code[2:4] + " " + code[4:]

		require.NoError(t, c.Auth().Confirm2FA(ctx, res.Challenge.ChallengeID, formatted))
		require.True(t, c.Auth().IsLoggedIn())

		rec, ok := store.Read()
		require.True(t, ok)
		require.Contains(t, rec.Extra, "perfil")
		require.Contains(t, rec.Extra, "dashboard")
		require.Contains(t, rec.Extra, "taxas")
		require.Equal(t, credstore.Ephemeral, store.ScopeOf(), "remember=false from the pending login")
	})

	t.Run("consumed challenge is gone", func(t *testing.T) {
		err := c.Auth().Confirm2FA(ctx, res.Challenge.ChallengeID, sb.code(t))
		require.ErrorIs(t, err, portalsdk.Err2FAFailed)
		apiErr, _ := portalsdk.IsAPIError(err)
		require.Equal(t, http.StatusGone, apiErr.StatusCode)
	})
}

func TestAlwaysStepUpThenRefreshWithTrustOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sb := newSandbox(t, true)
	store := newStore()
	c := newClient(t, sb, store, nil)
	creds := portalsdk.Credentials{Email: email, Password: password, Remember: true}

	ch, err := c.Auth().StartChallenge(ctx, creds)
	require.NoError(t, err)
	require.NotEmpty(t, ch.ChallengeID)
	require.Equal(t, credstore.ScopeNone, store.ScopeOf())

	require.NoError(t, c.Auth().ConfirmChallenge(ctx, ch.ChallengeID, sb.code(t)))
	require.False(t, c.Auth().IsLoggedIn(), "explicit confirmation issues no session")

	// only the trust cookie is in the jar; refresh must still work and
	// land in the durable scope
	require.True(t, c.Auth().Refresh(ctx))
	require.True(t, c.Auth().IsLoggedIn())
	require.Equal(t, credstore.Durable, store.ScopeOf())

	rec, err := c.Auth().FinalizeLogin(ctx, creds)
	require.NoError(t, err)
	require.NotEmpty(t, rec.Token)
}

func TestFinalizeLoginWithoutTrustFails(t *testing.T) {
	t.Parallel()
	sb := newSandbox(t, true)
	c := newClient(t, sb, newStore(), nil)

	_, err := c.Auth().FinalizeLogin(context.Background(), portalsdk.Credentials{Email: email, Password: password})
	require.ErrorIs(t, err, portalsdk.Err2FAFailed)
}

func TestRefreshFailureClears(t *testing.T) {
	t.Parallel()
	sb := newSandbox(t, false)
	store := newStore()
	c := newClient(t, sb, store, nil)

	require.False(t, c.Auth().Refresh(context.Background()))
	require.False(t, c.Auth().IsLoggedIn())
	require.Equal(t, credstore.ScopeNone, store.ScopeOf())
}

func TestRefreshKeepsEphemeralScope(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sb := newSandbox(t, false)
	store := newStore()
	c := newClient(t, sb, store, nil)

	_, err := c.Auth().LoginSmart(ctx, portalsdk.Credentials{Email: email, Password: password})
	require.NoError(t, err)
	require.True(t, c.Auth().Refresh(ctx))
	require.Equal(t, credstore.Ephemeral, store.ScopeOf())
}

func TestLogout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sb := newSandbox(t, false)
	store := newStore()
	nav := &navRecorder{}
	c := newClient(t, sb, store, nav)

	_, err := c.Auth().LoginSmart(ctx, portalsdk.Credentials{Email: email, Password: password, Remember: true})
	require.NoError(t, err)

	c.Auth().Logout(ctx)
	require.False(t, c.Auth().IsLoggedIn())
	require.Equal(t, credstore.ScopeNone, store.ScopeOf())
	require.Equal(t, []string{portalsdk.LoginPath}, nav.paths)

	// the refresh cookie was revoked server side
	require.False(t, c.Auth().Refresh(ctx))

	t.Run("resource calls now fail with 401", func(t *testing.T) {
		_, err := c.ListOrders(ctx, portalsdk.OrderFilter{})
		apiErr, ok := portalsdk.IsAPIError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	})
}

func TestLogoutWhenBackendIsDown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sb := newSandbox(t, false)
	store := newStore()
	nav := &navRecorder{}
	c := newClient(t, sb, store, nav)

	_, err := c.Auth().LoginSmart(ctx, portalsdk.Credentials{Email: email, Password: password, Remember: true})
	require.NoError(t, err)

	c.BaseURL = "http://127.0.0.1:1"
	c.Auth().Logout(ctx)
	require.Equal(t, credstore.ScopeNone, store.ScopeOf())
	require.Equal(t, []string{portalsdk.LoginPath}, nav.paths)
}

func TestResources(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sb := newSandbox(t, false)
	c := newClient(t, sb, newStore(), nil)

	_, err := c.Auth().LoginSmart(ctx, portalsdk.Credentials{Email: email, Password: password})
	require.NoError(t, err)

	t.Run("orders", func(t *testing.T) {
		for _, v := range []string{"10.00", "25.50", "7.25"} {
			_, err := c.CreateOrder(ctx, portalsdk.OrderCreate{Valor: decimal.RequireFromString(v), Metodo: "pix"})
			require.NoError(t, err)
		}

		page, err := c.ListOrders(ctx, portalsdk.OrderFilter{Page: 1, PageSize: 2})
		require.NoError(t, err)
		require.Equal(t, 3, page.Total)
		require.Len(t, page.Items, 2)
		require.True(t, page.Items[0].Valor.Equal(decimal.RequireFromString("7.25")), "newest first")

		o, err := c.UpdateOrderStatus(ctx, page.Items[0].ID, portalsdk.OrderPago)
		require.NoError(t, err)
		require.Equal(t, "Pago", o.Status.String())

		missing, err := c.GetOrder(ctx, 9999)
		require.NoError(t, err)
		require.Nil(t, missing)
	})

	t.Run("transfers", func(t *testing.T) {
		tr, err := c.CreateTransfer(ctx, portalsdk.TransferCreate{
			ValorSolicitado: decimal.RequireFromString("200"),
			ChavePix:        email,
		})
		require.NoError(t, err)
		require.Equal(t, "196.00", tr.ValorFinal.StringFixed(2))

		page, err := c.ListTransfers(ctx, portalsdk.TransferFilter{})
		require.NoError(t, err)
		require.Equal(t, 1, page.Total)

		_, err = c.UpdateTransferStatus(ctx, tr.ID, portalsdk.TransferAprovada)
		apiErr, ok := portalsdk.IsAPIError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusForbidden, apiErr.StatusCode)

		_, err = c.CreateTransfer(ctx, portalsdk.TransferCreate{ChavePix: email})
		var verr *portalsdk.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("webhooks", func(t *testing.T) {
		w, err := c.CreateWebhook(ctx, portalsdk.WebhookInput{
			URL:     "loja.com/hooks",
			Ativo:   true,
			Secret:  "s3cr3t",
			Eventos: []string{portalsdk.EventPixGerado, portalsdk.EventEstorno},
		})
		require.NoError(t, err)
		require.Equal(t, "https://loja.com/hooks", w.URL)
		require.ElementsMatch(t, []string{portalsdk.EventPixGerado, portalsdk.EventEstorno}, w.Events())

		list, err := c.ListWebhooks(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)

		require.NoError(t, c.DeleteWebhook(ctx, w.ID))
		got, err := c.GetWebhook(ctx, w.ID)
		require.NoError(t, err)
		require.Nil(t, got)
	})
}

func TestRegistrationAndPasswordReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sb := newSandbox(t, false)
	c := newClient(t, sb, newStore(), nil)

	created, err := c.Register(ctx, portalsdk.UserCreate{Nome: "Bruno", Email: "bruno@loja.com", Senha: "senha-segura"})
	require.NoError(t, err)
	require.False(t, created.CadastroCompleto)

	_, err = c.Register(ctx, portalsdk.UserCreate{Nome: "Bruno", Email: "bruno@loja.com", Senha: "senha-segura"})
	apiErr, ok := portalsdk.IsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusConflict, apiErr.StatusCode)

	_, err = c.Auth().LoginSmart(ctx, portalsdk.Credentials{Email: "bruno@loja.com", Password: "senha-segura"})
	require.NoError(t, err)

	pj := portalsdk.PessoaJuridica
	done, err := c.CompleteRegistration(ctx, created.ID, portalsdk.UserUpdate{
		Nome:         "Bruno",
		Email:        "bruno@loja.com",
		TipoCadastro: &pj,
		CpfCnpj:      "12.345.678/0001-90",
		RazaoSocial:  "Bruno Comércio LTDA",
	})
	require.NoError(t, err)
	require.True(t, done.CadastroCompleto)
	require.Equal(t, "12.345.678/0001-90", done.CpfCnpjFormatado)

	_, err = c.CompleteRegistration(ctx, created.ID, portalsdk.UserUpdate{Nome: "Bruno", Email: "bruno@loja.com", TipoCadastro: &pj})
	var verr *portalsdk.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "cpfCnpj", verr.Field)

	require.NoError(t, c.ForgotPassword(ctx, "bruno@loja.com"))
	msg, ok := sb.mailer.Last("bruno@loja.com")
	require.True(t, ok)

	valid, err := c.ValidateResetToken(ctx, msg.Secret)
	require.NoError(t, err)
	require.True(t, valid)

	require.NoError(t, c.ResetPassword(ctx, msg.Secret, "outra-senha-1"))
	valid, err = c.ValidateResetToken(ctx, msg.Secret)
	require.NoError(t, err)
	require.False(t, valid)
}

func TestLoginUnexpectedSuccessStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	store := newStore()
	c, err := portalsdk.NewClient(portalsdk.Config{BaseURL: srv.URL, Store: store, Logger: slogx.Discard(), LoginThrottle: &open})
	require.NoError(t, err)

	_, err = c.Auth().LoginSmart(context.Background(), portalsdk.Credentials{Email: email, Password: password})
	require.ErrorIs(t, err, portalsdk.ErrUnexpectedResponse)
	require.Equal(t, credstore.ScopeNone, store.ScopeOf())
}
