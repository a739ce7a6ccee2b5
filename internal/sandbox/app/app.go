package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aussiebroadwan/portal/internal/sandbox/domain"
	httpapi "github.com/aussiebroadwan/portal/internal/sandbox/http"
	"github.com/aussiebroadwan/portal/internal/sandbox/service"
	"github.com/aussiebroadwan/portal/pkg/cryptox"
	"github.com/aussiebroadwan/portal/pkg/idx"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application is the sandbox merchant API with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	store    *service.Store
	signer   jwtx.Signer
	verifier jwtx.Verifier

	Accounts     *service.AccountService
	Sessions     *service.SessionService
	StepUp       *service.StepUpService
	Orders       *service.OrderService
	Transfers    *service.TransferService
	Webhooks     *service.WebhookService
	housekeeping *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates the application. Zero-valued config fields fall back to the
// LoadConfig defaults so tests can pass a sparse Config.
func New(cfg Config) (*Application, error) {
	cfg = withDefaults(cfg)

	app := &Application{cfg: cfg, logger: cfg.Logger}
	if app.logger == nil {
		app.logger = slogx.New(slogx.Config{
			Service: "portal-sandbox",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		})
	}

	if err := app.initKeys(); err != nil {
		return nil, err
	}
	if err := app.initServices(); err != nil {
		return nil, err
	}
	if err := app.seed(); err != nil {
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the HTTP handler with every route applied.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeeping.Start(context.Background())

	app.logger.Info("sandbox starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"require_2fa", app.cfg.RequireStepUp,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down sandbox...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	app.logger.Info("sandbox stopped")
	return nil
}

// initKeys generates a fresh Ed25519 signing key. Tokens do not survive a
// restart, neither does anything else in the sandbox.
func (app *Application) initKeys() error {
	pemKey, err := cryptox.NewSigningKeyPEM()
	if err != nil {
		return fmt.Errorf("failed to generate signing key: %w", err)
	}
	signer, err := jwtx.NewSignerEdDSA(idx.New().String(), pemKey)
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}
	app.signer = signer
	app.verifier = jwtx.NewVerifierEdDSA(signer.Public(), app.cfg.Issuer, app.cfg.Now)

	app.logger.Info("signing key generated", "kid", signer.KID())
	return nil
}

func (app *Application) initServices() error {
	pepper, err := readPepper(app.cfg.PepperFile)
	if err != nil {
		return err
	}
	fee, err := decimal.NewFromString(app.cfg.FeeRate)
	if err != nil {
		return fmt.Errorf("invalid fee rate %q: %w", app.cfg.FeeRate, err)
	}

	mailer := app.cfg.Mailer
	if mailer == nil {
		mailer = service.LogMailer{Logger: app.logger}
	}
	now := app.cfg.Now

	app.store = service.NewStore()
	app.Accounts = &service.AccountService{
		Store:    app.store,
		Hasher:   cryptox.Hasher{Pepper: pepper},
		Mailer:   mailer,
		Now:      now,
		ResetURL: app.cfg.ResetURL,
	}
	app.Sessions = &service.SessionService{
		Store:      app.store,
		Signer:     app.signer,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
		TrustTTL:   app.cfg.TrustTTL,
		Now:        now,
	}
	app.StepUp = &service.StepUpService{
		Store:  app.store,
		Mailer: mailer,
		Issuer: app.cfg.Issuer,
		TTL:    app.cfg.ChallengeTTL,
		Now:    now,
	}
	app.Orders = &service.OrderService{Store: app.store, Now: now}
	app.Transfers = &service.TransferService{Store: app.store, Now: now, FeeRate: fee}
	app.Webhooks = &service.WebhookService{Store: app.store, Now: now}

	app.housekeeping = service.NewHousekeepingService(app.store, app.logger, app.cfg.HousekeepingInterval)
	app.housekeeping.Now = now
	return nil
}

// seed creates the configured admin account, if any.
func (app *Application) seed() error {
	if app.cfg.SeedEmail == "" {
		return nil
	}
	acc, err := app.Seed(context.Background(), app.cfg.SeedEmail, app.cfg.SeedPassword, true)
	if err != nil {
		return fmt.Errorf("failed to seed admin account: %w", err)
	}
	app.logger.Info("admin account seeded", "account_id", acc.ID, "email", acc.MaskedEmail())
	return nil
}

// Seed registers an account with a completed profile.
func (app *Application) Seed(ctx context.Context, email, password string, admin bool) (domain.Account, error) {
	acc, err := app.Accounts.Register(ctx, domain.Account{
		Email:            email,
		Nome:             strings.SplitN(email, "@", 2)[0],
		IsAdmin:          admin,
		CadastroCompleto: true,
	}, password)
	if err != nil {
		return domain.Account{}, err
	}
	return acc, nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.verifier, BuildVersion, app.logger)

	router.AccountService = app.Accounts
	router.SessionService = app.Sessions
	router.StepUpService = app.StepUp
	router.OrderService = app.Orders
	router.TransferService = app.Transfers
	router.WebhookService = app.Webhooks
	router.RequireStepUp = app.cfg.RequireStepUp
	router.SecureCookies = app.cfg.SecureCookies
	if app.cfg.LoginLimit != nil {
		router.LoginLimit = *app.cfg.LoginLimit
	}
	if app.cfg.ResourceLimit != nil {
		router.ResourceLimit = *app.cfg.ResourceLimit
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

func readPepper(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read pepper file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func withDefaults(cfg Config) Config {
	def := LoadConfig()
	if cfg.Issuer == "" {
		cfg.Issuer = def.Issuer
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = jwtx.DefaultAccessTokenTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.TrustTTL <= 0 {
		cfg.TrustTTL = 30 * 24 * time.Hour
	}
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = 10 * time.Minute
	}
	if cfg.FeeRate == "" {
		cfg.FeeRate = "0.02"
	}
	if cfg.ShutdownGracePeriod <= 0 {
		cfg.ShutdownGracePeriod = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return cfg
}
