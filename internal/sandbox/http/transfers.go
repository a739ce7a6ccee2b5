package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/portal/internal/sandbox/service"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
)

// TransfersHandler serves /api/transferencias. Lists are a bare array with
// the total in X-Total-Count.
type TransfersHandler struct {
	Transfers *service.TransferService
	Accounts  *service.AccountService
}

// HandleList handles GET /api/transferencias
//
//	@Summary	List withdrawal requests
//	@Tags		Transfers
//	@Security	BearerAuth
//	@Produce	json
//	@Param		status			query	int		false	"transfer status"
//	@Param		solicitanteId	query	int		false	"requester"
//	@Param		dataInicio		query	string	false	"RFC3339 lower bound"
//	@Param		dataFim			query	string	false	"RFC3339 upper bound"
//	@Param		page			query	int		false	"page, from 1"
//	@Param		pageSize		query	int		false	"page size"
//	@Success	200	{array}	portalsdk.Transfer
//	@Header		200	{int}	X-Total-Count	"total matching records"
//	@Router		/api/transferencias [get].
func (h *TransfersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	who, ok := callerFrom(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	query := service.TransferQuery{
		From: parseTimeParam(q.Get("dataInicio")),
		To:   parseTimeParam(q.Get("dataFim")),
		Page: parseIntParam(q.Get("page")),
		Size: parseIntParam(q.Get("pageSize")),
	}
	if v := q.Get("status"); v != "" {
		st, ok := portalsdk.ParseTransferStatus(v)
		if !ok {
			httpx.WriteMessage(w, http.StatusBadRequest, msgBadRequest)
			return
		}
		query.Status = &st
	}
	if v := q.Get("solicitanteId"); v != "" {
		id := int64(parseIntParam(v))
		query.SolicitanteID = &id
	}

	items, total := h.Transfers.List(r.Context(), who, query)
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	httpx.WriteJSON(w, http.StatusOK, items)
}

// HandleCreate handles POST /api/transferencias
//
//	@Summary	Request a withdrawal
//	@Tags		Transfers
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Success	201	{object}	portalsdk.Transfer
//	@Router		/api/transferencias [post].
func (h *TransfersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	who, ok := callerFrom(w, r)
	if !ok {
		return
	}
	var req portalsdk.TransferCreate
	if !decodeBody(w, r, &req) {
		return
	}
	acc, err := h.Accounts.Get(r.Context(), who.AccountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	t, err := h.Transfers.Create(r.Context(), who, acc.Nome, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, t)
}

// HandleGet handles GET /api/transferencias/{id}
//
//	@Summary	Get a withdrawal request
//	@Tags		Transfers
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	portalsdk.Transfer
//	@Failure	404	{object}	map[string]string
//	@Router		/api/transferencias/{id} [get].
func (h *TransfersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	who, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := h.Transfers.Get(r.Context(), who, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t)
}

// HandleUpdateStatus handles PUT /api/transferencias/{id}/status
//
//	@Summary	Approve, refuse or mark a withdrawal as paid
//	@Tags		Transfers
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Success	200	{object}	portalsdk.Transfer
//	@Failure	403	{object}	map[string]string
//	@Router		/api/transferencias/{id}/status [put].
func (h *TransfersHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	who, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status portalsdk.TransferStatus `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := h.Transfers.UpdateStatus(r.Context(), who, id, req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t)
}
