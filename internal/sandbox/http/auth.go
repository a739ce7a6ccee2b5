package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/aussiebroadwan/portal/internal/sandbox/domain"
	"github.com/aussiebroadwan/portal/internal/sandbox/service"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

const (
	RefreshCookie = "vp_refresh"
	TrustCookie   = "vp_trust"

	cookiePath = "/api/auth"
)

// AuthHandler serves /api/auth.
type AuthHandler struct {
	Accounts *service.AccountService
	Sessions *service.SessionService
	StepUp   *service.StepUpService

	// RequireStepUp makes logins from devices without a trust cookie go
	// through email 2FA.
	RequireStepUp bool
	SecureCookies bool
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// authPayload is the 200 body of credential-issuing calls. The auxiliary
// blobs are only sent by the smart 2FA confirmation.
type authPayload struct {
	portalsdk.AuthResponse
	Perfil    *perfilBlob    `json:"perfil,omitempty"`
	Dashboard *dashboardBlob `json:"dashboard,omitempty"`
	Taxas     *taxasBlob     `json:"taxas,omitempty"`
}

type perfilBlob struct {
	CadastroCompleto bool   `json:"cadastroCompleto"`
	NomeFantasia     string `json:"nomeFantasia"`
}

type dashboardBlob struct {
	PedidosHoje int    `json:"pedidosHoje"`
	Saldo       string `json:"saldo"`
}

type taxasBlob struct {
	Saque string `json:"saque"`
}

// HandleLogin handles POST /api/auth/login
//
//	@Summary		Log in
//	@Description	Returns a session, or 202 with a 2FA challenge when the device is not trusted.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	portalsdk.AuthResponse
//	@Success		202	{object}	portalsdk.Challenge	"nested under challenge"
//	@Failure		401	{object}	map[string]string
//	@Router			/api/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	acc, err := h.Accounts.Authenticate(ctx, req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		httpx.WriteMessage(w, http.StatusUnauthorized, "E-mail ou senha inválidos.")
		return
	}
	if err != nil {
		log.Error("login failed", "err", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, msgServerError)
		return
	}

	if h.RequireStepUp && !h.trusted(r, acc.ID) {
		ch, err := h.StepUp.Start(ctx, acc, true, req.Remember)
		if err != nil {
			log.Error("start challenge failed", "account_id", acc.ID, "err", err)
			httpx.WriteMessage(w, http.StatusInternalServerError, msgServerError)
			return
		}
		log.Info("login requires step-up", "account_id", acc.ID, "challenge_id", ch.ID)
		httpx.WriteJSON(w, http.StatusAccepted, map[string]portalsdk.Challenge{
			"challenge": challengeDTO(ch),
		})
		return
	}

	h.writeSession(w, r, acc, req.Remember, false)
}

// HandleStart2FA handles POST /api/auth/login/2fa/start
//
//	@Summary		Start a 2FA challenge
//	@Description	Checks the credentials and emails a code. Confirming it sets the device trust cookie.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	portalsdk.Challenge
//	@Failure		401	{object}	map[string]string
//	@Router			/api/auth/login/2fa/start [post].
func (h *AuthHandler) HandleStart2FA(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	acc, err := h.Accounts.Authenticate(ctx, req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		httpx.WriteMessage(w, http.StatusUnauthorized, "E-mail ou senha inválidos.")
		return
	}
	if err != nil {
		log.Error("start 2fa failed", "err", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, msgServerError)
		return
	}

	ch, err := h.StepUp.Start(ctx, acc, false, req.Remember)
	if err != nil {
		log.Error("start challenge failed", "account_id", acc.ID, "err", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, msgServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, challengeDTO(ch))
}

// HandleConfirm2FA handles POST /api/auth/login/2fa/confirm
//
//	@Summary		Confirm a 2FA challenge
//	@Description	Login challenges answer 200 with the session; explicit ones answer 204. Both set the trust cookie.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	portalsdk.AuthResponse
//	@Success		204
//	@Failure		400	{object}	map[string]string	"wrong code"
//	@Failure		410	{object}	map[string]string	"expired or unknown challenge"
//	@Failure		429	{object}	map[string]string	"too many attempts"
//	@Router			/api/auth/login/2fa/confirm [post].
func (h *AuthHandler) HandleConfirm2FA(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req struct {
		ChallengeID string `json:"challengeId"`
		Code        string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	ch, err := h.StepUp.Confirm(ctx, req.ChallengeID, req.Code)
	switch {
	case errors.Is(err, service.ErrInvalidCode):
		httpx.WriteMessage(w, http.StatusBadRequest, "Código inválido.")
		return
	case errors.Is(err, service.ErrChallengeNotFound):
		httpx.WriteMessage(w, http.StatusGone, "Código expirado. Faça login novamente.")
		return
	case errors.Is(err, service.ErrTooManyAttempts):
		httpx.WriteMessage(w, http.StatusTooManyRequests, "Muitas tentativas. Faça login novamente.")
		return
	case err != nil:
		log.Error("confirm challenge failed", "err", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, msgServerError)
		return
	}

	trust, err := h.Sessions.TrustDevice(ctx, ch.AccountID)
	if err != nil {
		log.Error("trust device failed", "account_id", ch.AccountID, "err", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, msgServerError)
		return
	}
	http.SetCookie(w, h.cookie(TrustCookie, trust, h.Sessions.TrustTTL))

	if !ch.IssueSession {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	acc, err := h.Accounts.Get(ctx, ch.AccountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeSession(w, r, acc, ch.Remember, true)
}

// HandleRefresh handles POST /api/auth/refresh
//
//	@Summary		Refresh the session
//	@Description	Uses the vp_refresh cookie, or the vp_trust cookie when there is none. No bearer token.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	portalsdk.AuthResponse
//	@Failure		401	{object}	map[string]string
//	@Router			/api/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	refresh, remember := "", true
	if c, err := r.Cookie(RefreshCookie); err == nil {
		refresh = c.Value
	}
	trust := ""
	if c, err := r.Cookie(TrustCookie); err == nil {
		trust = c.Value
	}

	sess, err := h.Sessions.Refresh(ctx, refresh, trust)
	if err != nil {
		http.SetCookie(w, h.expired(RefreshCookie))
		httpx.WriteMessage(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	h.writeIssued(w, sess, remember, false)
}

// HandleLogout handles POST /api/auth/logout
//
//	@Summary		Log out
//	@Description	Revokes the refresh cookie. Always 204.
//	@Tags			Auth
//	@Success		204
//	@Router			/api/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(RefreshCookie); err == nil {
		h.Sessions.Revoke(r.Context(), c.Value)
	}
	http.SetCookie(w, h.expired(RefreshCookie))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) trusted(r *http.Request, accountID int64) bool {
	c, err := r.Cookie(TrustCookie)
	if err != nil {
		return false
	}
	return h.Sessions.IsTrusted(r.Context(), accountID, c.Value)
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, r *http.Request, acc domain.Account, remember, withBlobs bool) {
	sess, err := h.Sessions.Issue(r.Context(), acc)
	if err != nil {
		slogx.FromContext(r.Context()).Error("issue session failed", "account_id", acc.ID, "err", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, msgServerError)
		return
	}
	h.writeIssued(w, sess, remember, withBlobs)
}

func (h *AuthHandler) writeIssued(w http.ResponseWriter, sess service.Session, remember, withBlobs bool) {
	ttl := time.Duration(0)
	if remember {
		ttl = h.Sessions.RefreshTTL
	}
	http.SetCookie(w, h.cookie(RefreshCookie, sess.RefreshToken, ttl))

	body := authPayload{AuthResponse: portalsdk.AuthResponse{
		AccessToken:  sess.AccessToken,
		ExpiresAtUtc: sess.ExpiresAt.UTC().Format(expiresLayout),
		Usuario:      userDTO(sess.Account),
	}}
	if withBlobs {
		body.Perfil = &perfilBlob{
			CadastroCompleto: sess.Account.CadastroCompleto,
			NomeFantasia:     sess.Account.NomeFantasia,
		}
		body.Dashboard = &dashboardBlob{Saldo: "0.00"}
		body.Taxas = &taxasBlob{Saque: "0.02"}
	}
	httpx.WriteJSON(w, http.StatusOK, body)
}

// cookie builds an HttpOnly cookie scoped to /api/auth. A zero ttl makes
// a session cookie.
func (h *AuthHandler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     cookiePath,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		c.MaxAge = int(ttl / time.Second)
	}
	return c
}

func (h *AuthHandler) expired(name string) *http.Cookie {
	c := h.cookie(name, "", 0)
	c.MaxAge = -1
	return c
}

func challengeDTO(ch domain.Challenge) portalsdk.Challenge {
	return portalsdk.Challenge{
		ChallengeID:  ch.ID,
		MaskedEmail:  ch.Masked,
		ExpiresAtUtc: ch.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
