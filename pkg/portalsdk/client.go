package portalsdk

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/aussiebroadwan/portal/pkg/credstore"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API origin, e.g. https://api.example.com.
	BaseURL string

	// Store persists the session. A nil Store behaves like an environment
	// without persistent storage.
	Store *credstore.Store

	// Navigator performs the hard navigation after logout.
	Navigator Navigator

	Logger *slog.Logger

	// Transport is the innermost round tripper, http.DefaultTransport when nil.
	Transport http.RoundTripper

	// Timeout bounds every request. Defaults to 15s.
	Timeout time.Duration

	// LoginThrottle limits client-side login and 2FA calls. Nil uses
	// httpx.StrictLimit.
	LoginThrottle *httpx.RateLimitConfig

	// Now is used for expiry checks; time.Now when nil.
	Now func() time.Time
}

// Client is the portal API client. Every request goes through the same
// pipeline: credential injection, request logging, login throttling.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	auth *AuthState
	log  *slog.Logger
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("portalsdk: base url is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Store == nil {
		cfg.Store = credstore.New(credstore.Options{Logger: cfg.Logger})
	}
	throttle := httpx.StrictLimit
	if cfg.LoginThrottle != nil {
		throttle = *cfg.LoginThrottle
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	c := &Client{
		BaseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		log:     cfg.Logger,
	}
	c.auth = newAuthState(c, cfg.Store, cfg.Navigator, cfg.Logger, cfg.Now)

	var rt http.RoundTripper = httpx.NewThrottleTransport(cfg.Transport, throttle,
		pathLogin, pathStart2FA, pathConfirm2FA)
	rt = &slogx.Transport{Base: rt, Logger: cfg.Logger}
	rt = &CredentialTransport{Base: rt, Tokens: c.auth}

	c.HTTPClient = &http.Client{
		Transport: rt,
		Jar:       jar,
		Timeout:   cfg.Timeout,
	}
	return c, nil
}

// Auth returns the client's authentication state.
func (c *Client) Auth() *AuthState { return c.auth }
