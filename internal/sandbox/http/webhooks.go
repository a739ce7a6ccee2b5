package http

import (
	"net/http"

	"github.com/aussiebroadwan/portal/internal/sandbox/service"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
)

// WebhooksHandler serves /api/webhooks.
type WebhooksHandler struct {
	Webhooks *service.WebhookService
}

type webhookRequest struct {
	URL         string   `json:"url"`
	Ativo       bool     `json:"ativo"`
	Secret      string   `json:"secret"`
	Eventos     []string `json:"eventos"`
	EventosMask int      `json:"eventosMask"`
}

// input prefers the event names; older clients only send the mask.
func (req webhookRequest) input() service.WebhookInput {
	events := req.Eventos
	if len(events) == 0 && req.EventosMask != 0 {
		events = portalsdk.DecodeEventsMask(req.EventosMask)
	}
	return service.WebhookInput{
		URL:     req.URL,
		Ativo:   req.Ativo,
		Secret:  req.Secret,
		Eventos: events,
	}
}

// HandleList handles GET /api/webhooks
//
//	@Summary	List webhooks
//	@Tags		Webhooks
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{array}	portalsdk.Webhook
//	@Router		/api/webhooks [get].
func (h *WebhooksHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	who, ok := callerFrom(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.Webhooks.List(r.Context(), who))
}

// HandleGet handles GET /api/webhooks/{id}
//
//	@Summary	Get a webhook
//	@Tags		Webhooks
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	portalsdk.Webhook
//	@Failure	404	{object}	map[string]string
//	@Router		/api/webhooks/{id} [get].
func (h *WebhooksHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	who, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	wh, err := h.Webhooks.Get(r.Context(), who, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, wh)
}

// HandleCreate handles POST /api/webhooks
//
//	@Summary	Create a webhook
//	@Tags		Webhooks
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Success	201	{object}	portalsdk.Webhook
//	@Failure	400	{object}	map[string]string
//	@Router		/api/webhooks [post].
func (h *WebhooksHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	who, ok := callerFrom(w, r)
	if !ok {
		return
	}
	var req webhookRequest
	if !decodeBody(w, r, &req) {
		return
	}
	wh, err := h.Webhooks.Create(r.Context(), who, req.input())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, wh)
}

// HandleUpdate handles PUT /api/webhooks/{id}
//
//	@Summary	Replace a webhook
//	@Tags		Webhooks
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Success	200	{object}	portalsdk.Webhook
//	@Router		/api/webhooks/{id} [put].
func (h *WebhooksHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	who, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req webhookRequest
	if !decodeBody(w, r, &req) {
		return
	}
	wh, err := h.Webhooks.Update(r.Context(), who, id, req.input())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, wh)
}

// HandleDelete handles DELETE /api/webhooks/{id}
//
//	@Summary	Delete a webhook
//	@Tags		Webhooks
//	@Security	BearerAuth
//	@Success	204
//	@Router		/api/webhooks/{id} [delete].
func (h *WebhooksHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	who, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Webhooks.Delete(r.Context(), who, id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
