package portalsdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus mirrors the backend's order status codes. Gaps between the
// groups are intentional.
type OrderStatus int

const (
	OrderPendente  OrderStatus = 0
	OrderExpirado  OrderStatus = 1
	OrderCancelado OrderStatus = 2

	OrderProcessando OrderStatus = 10
	OrderRecusado    OrderStatus = 11

	OrderAutorizado OrderStatus = 20
	OrderCapturado  OrderStatus = 21

	OrderPago      OrderStatus = 30
	OrderAprovado              = OrderPago
	OrderConcluido OrderStatus = 31
	OrderLiquidado OrderStatus = 32

	OrderEstornoParcial OrderStatus = 40
	OrderEstornado      OrderStatus = 41
	OrderChargeback     OrderStatus = 42
)

var orderStatusNames = map[OrderStatus]string{
	OrderPendente:       "Pendente",
	OrderExpirado:       "Expirado",
	OrderCancelado:      "Cancelado",
	OrderProcessando:    "Processando",
	OrderRecusado:       "Recusado",
	OrderAutorizado:     "Autorizado",
	OrderCapturado:      "Capturado",
	OrderPago:           "Pago",
	OrderConcluido:      "Concluido",
	OrderLiquidado:      "Liquidado",
	OrderEstornoParcial: "EstornoParcial",
	OrderEstornado:      "Estornado",
	OrderChargeback:     "Chargeback",
}

func (s OrderStatus) String() string {
	if n, ok := orderStatusNames[s]; ok {
		return n
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusNames[s]
	return ok
}

// ParseOrderStatus accepts a status name (case sensitive) or its code.
func ParseOrderStatus(v string) (OrderStatus, bool) {
	if n, err := strconv.Atoi(v); err == nil {
		s := OrderStatus(n)
		return s, s.Valid()
	}
	for s, name := range orderStatusNames {
		if name == v {
			return s, true
		}
	}
	return 0, false
}

// Order is a sale as listed by /api/pedidos.
type Order struct {
	ID          int64           `json:"id"`
	Valor       decimal.Decimal `json:"valor"`
	Status      OrderStatus     `json:"status"`
	Metodo      string          `json:"metodo"`
	VendedorID  int64           `json:"vendedorId"`
	Cliente     string          `json:"cliente"`
	Descricao   string          `json:"descricao"`
	CriadoEmUtc string          `json:"criadoEmUtc"`
}

// OrderCreate is the payload to create an order.
type OrderCreate struct {
	Valor     decimal.Decimal `json:"valor"`
	Metodo    string          `json:"metodo"`
	Cliente   string          `json:"cliente,omitempty"`
	Descricao string          `json:"descricao,omitempty"`
}

// OrderFilter selects a page of orders. Zero values are omitted.
type OrderFilter struct {
	Status     *OrderStatus
	VendedorID *int64
	Metodo     string
	DataDe     time.Time
	DataAte    time.Time
	Page       int
	PageSize   int
}

func (f OrderFilter) query() url.Values {
	q := pageQuery(f.Page, f.PageSize)
	if f.Status != nil {
		q.Set("status", strconv.Itoa(int(*f.Status)))
	}
	if f.VendedorID != nil {
		q.Set("vendedorId", strconv.FormatInt(*f.VendedorID, 10))
	}
	if f.Metodo != "" {
		q.Set("metodo", f.Metodo)
	}
	if !f.DataDe.IsZero() {
		q.Set("dataDeUtc", f.DataDe.UTC().Format(time.RFC3339))
	}
	if !f.DataAte.IsZero() {
		q.Set("dataAteUtc", f.DataAte.UTC().Format(time.RFC3339))
	}
	return q
}

func (c *Client) ListOrders(ctx context.Context, f OrderFilter) (Page[Order], error) {
	return listPage[Order](ctx, c, pathOrders, f.query(), "pedidos")
}

func (c *Client) CreateOrder(ctx context.Context, in OrderCreate) (*Order, error) {
	var out Order
	if _, err := c.call(ctx, http.MethodPost, pathOrders, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrder returns the order or nil when it does not exist.
func (c *Client) GetOrder(ctx context.Context, id int64) (*Order, error) {
	var out Order
	resp, err := c.call(ctx, http.MethodGet, orderPath(id), nil, nil, &out)
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus) (*Order, error) {
	var out Order
	body := map[string]OrderStatus{"status": status}
	if _, err := c.call(ctx, http.MethodPut, orderPath(id)+"/status", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func orderPath(id int64) string {
	return pathOrders + "/" + strconv.FormatInt(id, 10)
}

func pageQuery(page, size int) url.Values {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	return url.Values{
		"page":     {strconv.Itoa(page)},
		"pageSize": {strconv.Itoa(size)},
	}
}

// listPage GETs a list endpoint and normalises its shape.
func listPage[T any](ctx context.Context, c *Client, path string, q url.Values, envelopeKeys ...string) (Page[T], error) {
	resp, body, err := c.do(ctx, http.MethodGet, path, q, nil, nil)
	if err != nil {
		return Page[T]{}, err
	}
	if !isSuccess(resp.StatusCode) {
		return Page[T]{}, parseErrorResponse(resp, body, nil, "")
	}

	page, err := decodePage[T](resp, body, envelopeKeys...)
	if err != nil {
		c.log.Warn("unexpected list shape", "path", path, "err", err)
		return Page[T]{}, unexpectedResponse(resp.StatusCode)
	}
	return page, nil
}
