package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/portal/internal/sandbox/domain"
	"github.com/aussiebroadwan/portal/internal/sandbox/service"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
)

const (
	msgBadRequest   = "Requisição inválida."
	msgNotFound     = "Registro não encontrado."
	msgServerError  = "Erro interno. Tente novamente mais tarde."
	msgUnauthorized = "Sessão expirada. Faça login novamente."
	msgForbidden    = "Acesso negado."
)

const maxRequestBody = 1 << 20

// expiresLayout is the zone-less UTC format the portal API uses for
// expiresAtUtc.
const expiresLayout = "2006-01-02T15:04:05.0000000"

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, msgBadRequest)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteMessage(w, http.StatusNotFound, msgNotFound)
		return 0, false
	}
	return id, true
}

// callerFrom reads the verified identity injected by AuthnMiddleware.
func callerFrom(w http.ResponseWriter, r *http.Request) (service.Caller, bool) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		httpx.WriteMessage(w, http.StatusUnauthorized, msgUnauthorized)
		return service.Caller{}, false
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		httpx.WriteMessage(w, http.StatusUnauthorized, msgUnauthorized)
		return service.Caller{}, false
	}
	return service.Caller{AccountID: id, Admin: claims.Admin}, true
}

// writeServiceError maps service errors onto the API's status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		httpx.WriteMessage(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, service.ErrForbidden):
		httpx.WriteMessage(w, http.StatusForbidden, msgForbidden)
	case errors.Is(err, service.ErrInvalidInput):
		httpx.WriteMessage(w, http.StatusBadRequest, msgBadRequest)
	case errors.Is(err, service.ErrAlreadyExists):
		httpx.WriteMessage(w, http.StatusConflict, "E-mail já cadastrado.")
	default:
		httpx.WriteMessage(w, http.StatusInternalServerError, msgServerError)
	}
}

func userDTO(a domain.Account) portalsdk.User {
	u := portalsdk.User{
		ID:                  portalsdk.FlexString(strconv.FormatInt(a.ID, 10)),
		Email:               a.Email,
		Name:                a.Nome,
		Nome:                a.Nome,
		IsAdmin:             a.IsAdmin,
		CadastroCompleto:    a.CadastroCompleto,
		CreatedAt:           a.CreatedAt.UTC().Format(time.RFC3339),
		CpfCnpj:             a.CpfCnpj,
		CpfCnpjFormatado:    domain.FormattedDocument(a.CpfCnpj),
		ChavePix:            a.ChavePix,
		ChaveCarteiraCripto: a.ChaveCarteiraCripto,
		NomeCompletoBanco:   a.NomeCompletoBanco,
		NomeFantasia:        a.NomeFantasia,
		RazaoSocial:         a.RazaoSocial,
		Site:                a.Site,
		Telefone:            a.Telefone,
		Instagram:           a.Instagram,
		EnderecoCep:         a.EnderecoCep,
		EnderecoLogradouro:  a.EnderecoLogradouro,
		EnderecoNumero:      a.EnderecoNumero,
		EnderecoComplemento: a.EnderecoComplemento,
		EnderecoBairro:      a.EnderecoBairro,
		EnderecoCidade:      a.EnderecoCidade,
		EnderecoUF:          a.EnderecoUF,
	}
	if a.TipoCadastro != nil {
		t := portalsdk.RegistrationType(*a.TipoCadastro)
		u.TipoCadastro = &t
	}
	return u
}

func userResponseDTO(a domain.Account) portalsdk.UserResponse {
	out := portalsdk.UserResponse{
		ID:               a.ID,
		Nome:             a.Nome,
		Email:            a.Email,
		Instagram:        a.Instagram,
		Telefone:         a.Telefone,
		CreatedAt:        a.CreatedAt.UTC().Format(time.RFC3339),
		CpfCnpj:          a.CpfCnpj,
		CpfCnpjFormatado: domain.FormattedDocument(a.CpfCnpj),
		IsAdmin:          a.IsAdmin,
		CadastroCompleto: a.CadastroCompleto,
	}
	if a.TipoCadastro != nil {
		t := portalsdk.RegistrationType(*a.TipoCadastro)
		out.TipoCadastro = &t
	}
	return out
}

func registrationType(t *portalsdk.RegistrationType) *int {
	if t == nil {
		return nil
	}
	v := int(*t)
	return &v
}

func parseTimeParam(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseIntParam(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}
