package portalsdk

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aussiebroadwan/portal/pkg/credstore"
)

// logoutTimeout bounds the best-effort backend logout call.
const logoutTimeout = 5 * time.Second

// Keys of the auxiliary blobs a smart 2FA confirmation may carry alongside
// the auth payload. They are merged into the stored record.
var auxiliaryKeys = []string{"perfil", "dashboard", "taxas"}

// Navigator performs a hard navigation, dropping any in-memory UI state.
type Navigator interface {
	HardNavigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) HardNavigate(path string) { f(path) }

// LoginResult is the outcome of LoginSmart. Exactly one of Session and
// Challenge is set, matching Status 200 and 202 respectively.
type LoginResult struct {
	Status    int
	Session   *credstore.Record
	Challenge *Challenge
}

// AuthState holds the live identity and runs the login, 2FA, refresh and
// logout flows. The persisted record in the store is the source of truth
// for the token unless a storage call failed; then the pinned state wins
// until the store accepts a write or clear again.
type AuthState struct {
	c     *Client
	store *credstore.Store
	nav   Navigator
	log   *slog.Logger
	now   func() time.Time

	mu   sync.Mutex
	user *User
	exp  int64

	// remember preference of the login waiting on a 2FA confirmation
	pendingRemember bool

	// pinned overrides the store after a failed write (the accepted record)
	// or a failed clear (nil record).
	pinned *pin

	observers map[int]func(User, bool)
	nextObs   int
}

type pin struct {
	rec *credstore.Record
}

func newAuthState(c *Client, store *credstore.Store, nav Navigator, log *slog.Logger, now func() time.Time) *AuthState {
	s := &AuthState{
		c:               c,
		store:           store,
		nav:             nav,
		log:             log,
		now:             now,
		pendingRemember: true,
		observers:       make(map[int]func(User, bool)),
	}
	s.restore()
	return s
}

// restore loads a non-expired record from the store, synchronously. An
// expired record stays in storage, unsurfaced, so a refresh can reuse its
// scope.
func (s *AuthState) restore() {
	rec, ok := s.store.Read()
	if !ok {
		return
	}
	if !rec.ValidAt(s.now()) {
		s.log.Debug("stored session expired", "exp", rec.ExpiresAt())
		return
	}
	u, err := DecodeUser(*rec)
	if err != nil {
		s.log.Warn("stored session unreadable", "err", err)
		_ = s.store.Clear()
		return
	}
	s.user, s.exp = &u, rec.Exp
}

// User returns the logged-in user, if any.
func (s *AuthState) User() (User, bool) {
	s.expireIfStale()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// IsLoggedIn reports whether a user is logged in and their session has not
// expired.
func (s *AuthState) IsLoggedIn() bool {
	_, ok := s.User()
	return ok
}

// Token returns the stored bearer token when a record exists and, if it
// has an expiry, now is before it. This is the only token accessor the
// transport and guards use.
func (s *AuthState) Token() (string, bool) {
	rec, ok := s.Record()
	if !ok {
		return "", false
	}
	if !rec.ValidAt(s.now()) {
		s.expireIfStale()
		return "", false
	}
	return rec.Token, true
}

// Subscribe registers fn to be called with the new state after every
// change. The returned func removes the subscription.
func (s *AuthState) Subscribe(fn func(u User, loggedIn bool)) (cancel func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// LoginSmart posts the credentials. A 200 logs the user in and persists the
// session in the scope picked by creds.Remember; a 202 returns the step-up
// challenge and leaves storage untouched.
func (s *AuthState) LoginSmart(ctx context.Context, creds Credentials) (LoginResult, error) {
	resp, body, err := s.c.do(ctx, http.MethodPost, pathLogin, nil, creds, nil)
	if err != nil {
		return LoginResult{}, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		rec, err := s.acceptAuthResponse(resp.StatusCode, body, creds.Remember)
		if err != nil {
			return LoginResult{}, err
		}
		return LoginResult{Status: http.StatusOK, Session: rec}, nil

	case resp.StatusCode == http.StatusAccepted:
		ch, err := decodeChallenge(body)
		if err != nil {
			return LoginResult{}, unexpectedResponse(resp.StatusCode)
		}
		s.mu.Lock()
		s.pendingRemember = creds.Remember
		s.mu.Unlock()
		return LoginResult{Status: http.StatusAccepted, Challenge: ch}, nil

	case isSuccess(resp.StatusCode):
		return LoginResult{}, unexpectedResponse(resp.StatusCode)

	default:
		return LoginResult{}, parseErrorResponse(resp, body, nil, "")
	}
}

// Confirm2FA confirms the challenge returned by LoginSmart. The response
// carries the full auth payload, which is persisted like a 200 login along
// with any auxiliary blobs. Failures stay in the pending state so the user
// can retry.
func (s *AuthState) Confirm2FA(ctx context.Context, challengeID, code string) error {
	code, err := ValidateOTP(code)
	if err != nil {
		return err
	}

	resp, body, err := s.c.do(ctx, http.MethodPost, pathConfirm2FA, nil, confirmRequest{
		ChallengeID: challengeID,
		Code:        code,
	}, nil)
	if err != nil {
		s.log.Warn("2fa confirm failed", "challenge_id", challengeID, "err", err)
		return err
	}
	if !isSuccess(resp.StatusCode) {
		apiErr := parseErrorResponse(resp, body, Err2FAFailed, Msg2FAFailed)
		s.log.Warn("2fa confirm rejected",
			"challenge_id", challengeID,
			"status", resp.StatusCode,
			"message", apiErr.Message,
		)
		return apiErr
	}

	s.mu.Lock()
	remember := s.pendingRemember
	s.mu.Unlock()

	if _, err := s.acceptAuthResponse(resp.StatusCode, body, remember); err != nil {
		s.log.Warn("2fa confirm returned no session", "challenge_id", challengeID, "status", resp.StatusCode)
		return err
	}

	s.mergeExtra(auxiliaryBlobs(body))
	return nil
}

// Refresh asks for a new session using only the cookies in the jar. On
// success the record is written back to the scope that held it before,
// durable when there was none. Any failure clears the session.
func (s *AuthState) Refresh(ctx context.Context) bool {
	resp, body, err := s.c.do(withAmbientCredentialsOnly(ctx), http.MethodPost, pathRefresh, nil, nil, nil)
	if err != nil {
		s.log.Debug("refresh failed", "err", err)
		s.clearLocal()
		return false
	}
	if resp.StatusCode != http.StatusOK {
		s.log.Debug("refresh rejected", "status", resp.StatusCode)
		s.clearLocal()
		return false
	}

	durable := s.store.ScopeOf() != credstore.Ephemeral
	if _, err := s.acceptAuthResponse(resp.StatusCode, body, durable); err != nil {
		s.log.Debug("refresh returned unusable session", "err", err)
		s.clearLocal()
		return false
	}
	return true
}

// Logout clears the local session unconditionally, tells the backend on a
// best-effort basis and navigates to the login page.
func (s *AuthState) Logout(ctx context.Context) {
	token, hasToken := s.Token()
	s.clearLocal()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
	defer cancel()

	headers := map[string]string{}
	if hasToken {
		headers["Authorization"] = "Bearer " + token
	}
	resp, body, err := s.c.do(ctx, http.MethodPost, pathLogout, nil, nil, headers)
	switch {
	case err != nil:
		s.log.Warn("backend logout failed", "err", err)
	case !isSuccess(resp.StatusCode):
		s.log.Warn("backend logout rejected", "status", resp.StatusCode, "message", messageFromBody(body))
	}

	if s.nav != nil {
		s.nav.HardNavigate(LoginPath)
	}
}

// acceptAuthResponse decodes a credential-issuing response, persists it and
// updates the live state. When the store rejects the write the record is
// pinned in memory so this process keeps sending its token.
func (s *AuthState) acceptAuthResponse(status int, body []byte, durable bool) (*credstore.Record, error) {
	var ar AuthResponse
	if err := json.Unmarshal(body, &ar); err != nil || ar.AccessToken == "" || ar.Usuario.ID == "" {
		return nil, unexpectedResponse(status)
	}

	rec := EncodeSession(ar, s.now())
	if err := s.store.Write(rec, durable); err != nil {
		s.log.Warn("persist session failed, keeping it in memory", "err", err)
		s.setPin(&pin{rec: &rec})
	} else {
		s.setPin(nil)
	}
	s.setUser(&ar.Usuario, rec.Exp)
	return &rec, nil
}

// clearLocal drops the session. A failed clear pins the logged out state so
// a surviving stored record is not served as a token.
func (s *AuthState) clearLocal() {
	if err := s.store.Clear(); err != nil {
		s.log.Warn("clear session failed, ignoring stored record", "err", err)
		s.setPin(&pin{})
	} else {
		s.setPin(nil)
	}
	s.setUser(nil, 0)
}

// Record returns the live session record: the pinned one when storage
// failed, otherwise the stored one. Expiry is not checked.
func (s *AuthState) Record() (*credstore.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.pinned; p != nil {
		if p.rec == nil {
			return nil, false
		}
		rec := *p.rec
		return &rec, true
	}
	return s.store.Read()
}

func (s *AuthState) setPin(p *pin) {
	s.mu.Lock()
	s.pinned = p
	s.mu.Unlock()
}

// mergeExtra adds the auxiliary blobs to the live record, in memory when it
// is pinned.
func (s *AuthState) mergeExtra(extra map[string]json.RawMessage) {
	if len(extra) == 0 {
		return
	}

	s.mu.Lock()
	p := s.pinned
	if p != nil && p.rec != nil {
		if p.rec.Extra == nil {
			p.rec.Extra = make(map[string]json.RawMessage, len(extra))
		}
		for k, v := range extra {
			p.rec.Extra[k] = v
		}
	}
	s.mu.Unlock()

	if p != nil {
		return
	}
	if err := s.store.Merge(extra); err != nil {
		s.log.Warn("merge auxiliary session data failed", "err", err)
	}
}

// expireIfStale drops the live user once the in-memory expiry has passed.
// Storage is kept so a later Refresh still knows the remember preference.
func (s *AuthState) expireIfStale() {
	s.mu.Lock()
	stale := s.user != nil && s.exp != 0 && s.now().UnixMilli() >= s.exp
	s.mu.Unlock()

	if stale {
		s.setUser(nil, 0)
	}
}

func (s *AuthState) setUser(u *User, exp int64) {
	s.mu.Lock()
	if u == nil && s.user == nil {
		s.mu.Unlock()
		return
	}
	s.user, s.exp = u, exp
	fns := make([]func(User, bool), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	var snapshot User
	if u != nil {
		snapshot = *u
	}
	for _, fn := range fns {
		fn(snapshot, u != nil)
	}
}

func auxiliaryBlobs(body []byte) map[string]json.RawMessage {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(body, &all); err != nil {
		return nil
	}
	extra := make(map[string]json.RawMessage)
	for _, k := range auxiliaryKeys {
		if v, ok := all[k]; ok && string(v) != "null" {
			extra[k] = v
		}
	}
	return extra
}

// IsAPIError reports whether err is an *APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
