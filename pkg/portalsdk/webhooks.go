package portalsdk

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Webhook event keys as the portal names them.
const (
	EventBoletoGerado       = "boletoGerado"
	EventPixGerado          = "pixGerado"
	EventCompraAprovada     = "compraAprovada"
	EventCompraRecusada     = "compraRecusada"
	EventEstorno            = "estorno"
	EventCarrinhoAbandonado = "carrinhoAbandonado"
	EventChargeback         = "chargeback"
	EventProcessando        = "processando"
)

// WebhookEvents lists the known events in mask bit order: bit i of
// eventosMask is WebhookEvents[i].
var WebhookEvents = []string{
	EventBoletoGerado,
	EventPixGerado,
	EventCompraAprovada,
	EventCompraRecusada,
	EventEstorno,
	EventCarrinhoAbandonado,
	EventChargeback,
	EventProcessando,
}

// Webhook is a configured notification endpoint.
type Webhook struct {
	ID              int64    `json:"id"`
	URL             string   `json:"url"`
	Ativo           bool     `json:"ativo"`
	HasSecret       bool     `json:"hasSecret"`
	Eventos         []string `json:"eventos"`
	EventosMask     int      `json:"eventosMask"`
	CriadoEmUtc     string   `json:"criadoEmUtc"`
	AtualizadoEmUtc string   `json:"atualizadoEmUtc"`
}

// WebhookInput creates or updates a webhook. Eventos holds portal event
// keys; they are sent both as names and as a mask.
type WebhookInput struct {
	URL     string
	Ativo   bool
	Secret  string
	Eventos []string
}

type webhookWire struct {
	URL         string   `json:"url"`
	Ativo       bool     `json:"ativo"`
	Secret      string   `json:"secret,omitempty"`
	Eventos     []string `json:"eventos"`
	EventosMask int      `json:"eventosMask"`
}

// Events returns the subscribed events as portal keys. The expanded
// eventos list wins; the mask is the fallback when it is empty.
func (w Webhook) Events() []string {
	if len(w.Eventos) > 0 {
		out := make([]string, 0, len(w.Eventos))
		for _, name := range w.Eventos {
			out = append(out, eventKey(name))
		}
		return out
	}
	return DecodeEventsMask(w.EventosMask)
}

// DecodeEventsMask expands a mask into event keys, ignoring unknown bits.
func DecodeEventsMask(mask int) []string {
	out := []string{}
	for i, key := range WebhookEvents {
		if mask&(1<<i) != 0 {
			out = append(out, key)
		}
	}
	return out
}

// EncodeEventsMask is the inverse of DecodeEventsMask. Keys may be given
// in either portal or backend casing.
func EncodeEventsMask(keys []string) (int, error) {
	mask := 0
	for _, k := range keys {
		i := eventIndex(eventKey(k))
		if i < 0 {
			return 0, &ValidationError{Field: "eventos", Message: fmt.Sprintf("Evento desconhecido: %s.", k)}
		}
		mask |= 1 << i
	}
	return mask, nil
}

// NormalizeWebhookURL trims the URL and prefixes https:// when no scheme
// is given.
func NormalizeWebhookURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	lower := strings.ToLower(u)
	if strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://") {
		return u
	}
	return "https://" + strings.TrimLeft(u, "/")
}

// eventKey maps a backend name (BoletoGerado) to its portal key
// (boletoGerado).
func eventKey(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToLower(r)) + name[size:]
}

// eventName maps a portal key to the backend name.
func eventName(key string) string {
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError {
		return key
	}
	return string(unicode.ToUpper(r)) + key[size:]
}

func eventIndex(key string) int {
	for i, k := range WebhookEvents {
		if k == key {
			return i
		}
	}
	return -1
}

func (in WebhookInput) wire() (webhookWire, error) {
	u := NormalizeWebhookURL(in.URL)
	if u == "" {
		return webhookWire{}, &ValidationError{Field: "url", Message: "Informe a URL do webhook."}
	}
	mask, err := EncodeEventsMask(in.Eventos)
	if err != nil {
		return webhookWire{}, err
	}
	names := make([]string, 0, len(in.Eventos))
	for _, k := range in.Eventos {
		names = append(names, eventName(eventKey(k)))
	}
	return webhookWire{URL: u, Ativo: in.Ativo, Secret: in.Secret, Eventos: names, EventosMask: mask}, nil
}

func (c *Client) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var out []Webhook
	if _, err := c.call(ctx, http.MethodGet, pathWebhooks, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetWebhook returns the webhook or nil when it does not exist.
func (c *Client) GetWebhook(ctx context.Context, id int64) (*Webhook, error) {
	var out Webhook
	resp, err := c.call(ctx, http.MethodGet, webhookPath(id), nil, nil, &out)
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateWebhook(ctx context.Context, in WebhookInput) (*Webhook, error) {
	body, err := in.wire()
	if err != nil {
		return nil, err
	}
	var out Webhook
	if _, err := c.call(ctx, http.MethodPost, pathWebhooks, nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateWebhook(ctx context.Context, id int64, in WebhookInput) (*Webhook, error) {
	body, err := in.wire()
	if err != nil {
		return nil, err
	}
	var out Webhook
	if _, err := c.call(ctx, http.MethodPut, webhookPath(id), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteWebhook(ctx context.Context, id int64) error {
	_, err := c.call(ctx, http.MethodDelete, webhookPath(id), nil, nil, nil)
	return err
}

func webhookPath(id int64) string {
	return pathWebhooks + "/" + strconv.FormatInt(id, 10)
}
