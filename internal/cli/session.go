package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aussiebroadwan/portal/pkg/credstore"
	"github.com/aussiebroadwan/portal/pkg/credstore/drivers/sqlite"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

const (
	stateDBName = "state.db"

	cookiesKey     = "vp_cookies"
	trustCookie    = "vp_trust"
	authCookiePath = "/api/auth"
)

// session is the state of one CLI invocation: the two credential scopes,
// the SDK client and the last hard navigation the SDK asked for.
type session struct {
	log     *slog.Logger
	db      *sqlite.Store
	store   *credstore.Store
	client  *portalsdk.Client
	cookies *cookieKeeper
	stderr  io.Writer

	redirect string
}

// openSession opens the durable database under cfg.StateDir and the
// ephemeral session file of the calling shell, then restores the auth
// cookies of the previous invocation.
func openSession(cfg Config, stderr io.Writer) (*session, error) {
	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	log := slogx.New(slogx.Config{
		Service: "portal",
		Version: Version,
		Env:     "cli",
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  stderr,
	})

	db, err := sqlite.Open(filepath.Join(cfg.StateDir, stateDBName))
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}

	// One file per shell so a session-only login ends with the terminal.
	sweepSessionFiles(cfg.StateDir, processAlive, log)
	ephemeral := credstore.NewFileKV(sessionFile(cfg.StateDir, os.Getppid()))

	s := &session{
		log:    log,
		db:     db,
		stderr: stderr,
		store: credstore.New(credstore.Options{
			Durable:              db,
			Ephemeral:            ephemeral,
			HasPersistentStorage: true,
			Logger:               log,
		}),
	}

	s.client, err = portalsdk.NewClient(portalsdk.Config{
		BaseURL:   cfg.API,
		Store:     s.store,
		Navigator: portalsdk.NavigatorFunc(s.navigate),
		Logger:    log,
		Timeout:   cfg.Timeout,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s.cookies, err = newCookieKeeper(s.client.BaseURL, db, ephemeral, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.cookies.restore(s.client.HTTPClient.Jar)
	return s, nil
}

func (s *session) navigate(path string) {
	s.redirect = path
	fmt.Fprintf(s.stderr, "-> %s\n", path)
}

// admit runs the guard named by a command's annotation. A protected
// command first tries a silent refresh when the previous invocation left
// auth cookies behind.
func (s *session) admit(ctx context.Context, guard string) error {
	auth := s.client.Auth()

	switch guard {
	case guardAuth:
		d := portalsdk.RequireAuth(auth)
		if !d.Admit && s.cookies.present(s.client.HTTPClient.Jar) {
			s.log.Debug("session expired, trying silent refresh")
			auth.Refresh(ctx)
			d = portalsdk.RequireAuth(auth)
		}
		if !d.Admit {
			return &RedirectError{Path: d.Redirect}
		}
	case guardGuest:
		if d := portalsdk.RequireGuest(auth); !d.Admit {
			return &RedirectError{Path: d.Redirect}
		}
	}
	return nil
}

// Close saves the auth cookies for the next invocation and closes the
// durable database.
func (s *session) Close() error {
	s.cookies.persist(s.client.HTTPClient.Jar, s.store.ScopeOf())
	return s.db.Close()
}

// RedirectError is what a guard's hard navigation becomes on the command
// line: the command does not run and the process exits non-zero.
type RedirectError struct {
	Path string
}

func (e *RedirectError) Error() string {
	if e.Path == portalsdk.LoginPath {
		return fmt.Sprintf("not logged in (redirect to %s): run `portal login`", e.Path)
	}
	return fmt.Sprintf("already logged in (redirect to %s): run `portal logout` first", e.Path)
}

// cookieKeeper carries the auth cookies across invocations, since each
// process starts with an empty jar. The refresh cookie follows the scope of
// the session record; the device trust cookie is always durable.
type cookieKeeper struct {
	u         *url.URL
	path      string
	durable   credstore.KV
	ephemeral credstore.KV
	log       *slog.Logger
}

func newCookieKeeper(baseURL string, durable, ephemeral credstore.KV, log *slog.Logger) (*cookieKeeper, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	path := strings.TrimSuffix(base.Path, "/") + authCookiePath
	return &cookieKeeper{
		u:         base.ResolveReference(&url.URL{Path: path + "/refresh"}),
		path:      path,
		durable:   durable,
		ephemeral: ephemeral,
		log:       log,
	}, nil
}

func (k *cookieKeeper) restore(jar http.CookieJar) {
	var cookies []*http.Cookie
	for _, kv := range []credstore.KV{k.durable, k.ephemeral} {
		raw, ok, err := kv.Get(cookiesKey)
		if err != nil {
			k.log.Warn("read saved cookies failed", "err", err)
			continue
		}
		if !ok {
			continue
		}
		var saved map[string]string
		if err := json.Unmarshal([]byte(raw), &saved); err != nil {
			k.log.Warn("saved cookies are corrupt", "err", err)
			continue
		}
		for name, value := range saved {
			cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: k.path})
		}
	}
	if len(cookies) > 0 {
		jar.SetCookies(k.u, cookies)
	}
}

func (k *cookieKeeper) present(jar http.CookieJar) bool {
	return len(jar.Cookies(k.u)) > 0
}

func (k *cookieKeeper) persist(jar http.CookieJar, scope credstore.Scope) {
	durable, ephemeral := map[string]string{}, map[string]string{}
	for _, c := range jar.Cookies(k.u) {
		if c.Name != trustCookie && scope == credstore.Ephemeral {
			ephemeral[c.Name] = c.Value
		} else {
			durable[c.Name] = c.Value
		}
	}
	k.put(k.durable, durable)
	k.put(k.ephemeral, ephemeral)
}

func (k *cookieKeeper) put(kv credstore.KV, cookies map[string]string) {
	var err error
	if len(cookies) == 0 {
		err = kv.Delete(cookiesKey)
	} else {
		var raw []byte
		if raw, err = json.Marshal(cookies); err == nil {
			err = kv.Set(cookiesKey, string(raw))
		}
	}
	if err != nil {
		k.log.Warn("save cookies failed", "err", err)
	}
}
