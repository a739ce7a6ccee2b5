package http

import (
	"net/http"

	"github.com/aussiebroadwan/portal/internal/sandbox/service"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
)

// OrdersHandler serves /api/pedidos. Lists are wrapped in an envelope.
type OrdersHandler struct {
	Orders *service.OrderService
}

type ordersEnvelope struct {
	Pedidos        []portalsdk.Order `json:"pedidos"`
	TotalRegistros int               `json:"totalRegistros"`
	PaginaAtual    int               `json:"paginaAtual"`
	TamanhoPagina  int               `json:"tamanhoPagina"`
}

// HandleList handles GET /api/pedidos
//
//	@Summary	List orders
//	@Tags		Orders
//	@Security	BearerAuth
//	@Produce	json
//	@Param		status		query	int		false	"order status"
//	@Param		vendedorId	query	int		false	"seller"
//	@Param		metodo		query	string	false	"payment method"
//	@Param		dataDeUtc	query	string	false	"RFC3339 lower bound"
//	@Param		dataAteUtc	query	string	false	"RFC3339 upper bound"
//	@Param		page		query	int		false	"page, from 1"
//	@Param		pageSize	query	int		false	"page size"
//	@Success	200	{object}	ordersEnvelope
//	@Router		/api/pedidos [get].
func (h *OrdersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	who, ok := callerFrom(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	query := service.OrderQuery{
		Metodo: q.Get("metodo"),
		From:   parseTimeParam(q.Get("dataDeUtc")),
		To:     parseTimeParam(q.Get("dataAteUtc")),
		Page:   parseIntParam(q.Get("page")),
		Size:   parseIntParam(q.Get("pageSize")),
	}
	if v := q.Get("status"); v != "" {
		st, ok := portalsdk.ParseOrderStatus(v)
		if !ok {
			httpx.WriteMessage(w, http.StatusBadRequest, msgBadRequest)
			return
		}
		query.Status = &st
	}
	if v := q.Get("vendedorId"); v != "" {
		id := int64(parseIntParam(v))
		query.VendedorID = &id
	}

	items, total := h.Orders.List(r.Context(), who, query)
	httpx.WriteJSON(w, http.StatusOK, ordersEnvelope{
		Pedidos:        items,
		TotalRegistros: total,
		PaginaAtual:    max(query.Page, 1),
		TamanhoPagina:  len(items),
	})
}

// HandleCreate handles POST /api/pedidos
//
//	@Summary	Create an order
//	@Tags		Orders
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Success	201	{object}	portalsdk.Order
//	@Router		/api/pedidos [post].
func (h *OrdersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	who, ok := callerFrom(w, r)
	if !ok {
		return
	}
	var req portalsdk.OrderCreate
	if !decodeBody(w, r, &req) {
		return
	}
	o, err := h.Orders.Create(r.Context(), who, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, o)
}

// HandleGet handles GET /api/pedidos/{id}
//
//	@Summary	Get an order
//	@Tags		Orders
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	portalsdk.Order
//	@Failure	404	{object}	map[string]string
//	@Router		/api/pedidos/{id} [get].
func (h *OrdersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	who, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := h.Orders.Get(r.Context(), who, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}

// HandleUpdateStatus handles PUT /api/pedidos/{id}/status
//
//	@Summary	Change an order's status
//	@Tags		Orders
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Success	200	{object}	portalsdk.Order
//	@Router		/api/pedidos/{id}/status [put].
func (h *OrdersHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	who, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status portalsdk.OrderStatus `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	o, err := h.Orders.UpdateStatus(r.Context(), who, id, req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}
