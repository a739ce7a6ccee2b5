package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/portal/internal/sandbox/domain"
	"github.com/aussiebroadwan/portal/internal/sandbox/service"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// UsersHandler serves /api/usuarios.
type UsersHandler struct {
	Accounts *service.AccountService
}

// HandleRegister handles POST /api/usuarios/cadastro-inicial
//
//	@Summary	Register a merchant
//	@Tags		Users
//	@Accept		json
//	@Produce	json
//	@Success	201	{object}	portalsdk.UserResponse
//	@Failure	400	{object}	map[string]string
//	@Failure	409	{object}	map[string]string
//	@Router		/api/usuarios/cadastro-inicial [post].
func (h *UsersHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.UserCreate
	if !decodeBody(w, r, &req) {
		return
	}

	acc, err := h.Accounts.Register(r.Context(), domain.Account{
		Email:        req.Email,
		Nome:         req.Nome,
		TipoCadastro: registrationType(req.TipoCadastro),
		CpfCnpj:      domain.DocumentDigits(req.CpfCnpj),
		Telefone:     req.Telefone,
		Instagram:    req.Instagram,
	}, req.Senha)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	slogx.FromContext(r.Context()).Info("account registered", "account_id", acc.ID)
	httpx.WriteJSON(w, http.StatusCreated, userResponseDTO(acc))
}

// HandleList handles GET /api/usuarios
//
//	@Summary	List users
//	@Tags		Users
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{array}		portalsdk.UserResponse
//	@Failure	403	{object}	map[string]string
//	@Router		/api/usuarios [get].
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	accounts := h.Accounts.List(r.Context())
	out := make([]portalsdk.UserResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, userResponseDTO(a))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /api/usuarios/{id}
//
//	@Summary	Get a user
//	@Tags		Users
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	portalsdk.UserResponse
//	@Failure	404	{object}	map[string]string
//	@Router		/api/usuarios/{id} [get].
func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.target(w, r)
	if !ok {
		return
	}
	acc, err := h.Accounts.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userResponseDTO(acc))
}

// HandleUpdate handles PUT /api/usuarios/{id}
//
//	@Summary	Update a user's profile
//	@Tags		Users
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Success	200	{object}	portalsdk.UserResponse
//	@Router		/api/usuarios/{id} [put].
func (h *UsersHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// HandleComplete handles PUT /api/usuarios/{id}/completar-cadastro
//
//	@Summary	Finish the registration wizard
//	@Tags		Users
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Success	200	{object}	portalsdk.UserResponse
//	@Router		/api/usuarios/{id}/completar-cadastro [put].
func (h *UsersHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *UsersHandler) update(w http.ResponseWriter, r *http.Request, complete bool) {
	id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req portalsdk.UserUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	if complete {
		if err := req.Validate(); err != nil {
			httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	acc, err := h.Accounts.Update(r.Context(), domain.Account{
		ID:                  id,
		Email:               req.Email,
		Nome:                req.Nome,
		TipoCadastro:        registrationType(req.TipoCadastro),
		CpfCnpj:             domain.DocumentDigits(req.CpfCnpj),
		Instagram:           req.Instagram,
		Telefone:            req.Telefone,
		NomeFantasia:        req.NomeFantasia,
		RazaoSocial:         req.RazaoSocial,
		Site:                req.Site,
		EnderecoCep:         req.EnderecoCep,
		EnderecoLogradouro:  req.EnderecoLogradouro,
		EnderecoNumero:      req.EnderecoNumero,
		EnderecoComplemento: req.EnderecoComplemento,
		EnderecoBairro:      req.EnderecoBairro,
		EnderecoCidade:      req.EnderecoCidade,
		EnderecoUF:          req.EnderecoUF,
		NomeCompletoBanco:   req.NomeCompletoBanco,
		ChavePix:            req.ChavePix,
		ChaveCarteiraCripto: req.ChaveCarteiraCripto,
	}, req.Senha, complete)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userResponseDTO(acc))
}

// target resolves {id} and checks the caller may act on it.
func (h *UsersHandler) target(w http.ResponseWriter, r *http.Request) (int64, bool) {
	who, ok := callerFrom(w, r)
	if !ok {
		return 0, false
	}
	id, ok := pathID(w, r)
	if !ok {
		return 0, false
	}
	if !who.Admin && who.AccountID != id {
		httpx.WriteMessage(w, http.StatusForbidden, msgForbidden)
		return 0, false
	}
	return id, true
}

// HandleForgotPassword handles POST /api/usuarios/esqueci-senha
//
//	@Summary		Request a password reset
//	@Description	Always 204 so emails cannot be enumerated.
//	@Tags			Users
//	@Accept			json
//	@Success		204
//	@Router			/api/usuarios/esqueci-senha [post].
func (h *UsersHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Accounts.ForgotPassword(r.Context(), req.Email); err != nil {
		slogx.FromContext(r.Context()).Error("forgot password failed", "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleResetPassword handles POST /api/usuarios/resetar-senha
//
//	@Summary	Reset a password with an emailed token
//	@Tags		Users
//	@Accept		json
//	@Success	204
//	@Failure	400	{object}	map[string]string
//	@Router		/api/usuarios/resetar-senha [post].
func (h *UsersHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token     string `json:"token"`
		NovaSenha string `json:"novaSenha"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.Accounts.ResetPassword(r.Context(), req.Token, req.NovaSenha)
	switch {
	case errors.Is(err, service.ErrInvalidResetToken):
		httpx.WriteMessage(w, http.StatusBadRequest, "Link de redefinição inválido ou expirado.")
	case errors.Is(err, service.ErrInvalidInput):
		httpx.WriteMessage(w, http.StatusBadRequest, "A senha deve ter ao menos 8 caracteres.")
	case err != nil:
		writeServiceError(w, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleValidateResetToken handles GET /api/usuarios/resetar-senha/validar
//
//	@Summary	Check a reset token
//	@Tags		Users
//	@Param		token	query	string	true	"reset token"
//	@Success	204
//	@Failure	400	{object}	map[string]string
//	@Router		/api/usuarios/resetar-senha/validar [get].
func (h *UsersHandler) HandleValidateResetToken(w http.ResponseWriter, r *http.Request) {
	if !h.Accounts.ValidateResetToken(r.Context(), r.URL.Query().Get("token")) {
		httpx.WriteMessage(w, http.StatusBadRequest, "Link de redefinição inválido ou expirado.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
