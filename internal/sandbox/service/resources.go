package service

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sort"
	"time"

	"github.com/aussiebroadwan/portal/pkg/portalsdk"
	"github.com/shopspring/decimal"
)

var ErrForbidden = errors.New("forbidden")

// Caller identifies who is acting on a resource.
type Caller struct {
	AccountID int64
	Admin     bool
}

func (c Caller) owns(ownerID int64) bool {
	return c.Admin || c.AccountID == ownerID
}

// OrderQuery filters orders. Nil/zero fields match everything.
type OrderQuery struct {
	Status     *portalsdk.OrderStatus
	VendedorID *int64
	Metodo     string
	From, To   time.Time
	Page, Size int
}

type OrderService struct {
	Store *Store
	Now   func() time.Time
}

// List returns a page of orders, newest first. Non-admins only see their
// own sales whatever VendedorID says.
func (s *OrderService) List(ctx context.Context, who Caller, q OrderQuery) ([]portalsdk.Order, int) {
	s.Store.mu.Lock()
	var all []portalsdk.Order
	for _, o := range s.Store.orders {
		if !who.owns(o.VendedorID) {
			continue
		}
		if q.VendedorID != nil && o.VendedorID != *q.VendedorID {
			continue
		}
		if q.Status != nil && o.Status != *q.Status {
			continue
		}
		if q.Metodo != "" && o.Metodo != q.Metodo {
			continue
		}
		if !q.From.IsZero() || !q.To.IsZero() {
			created, err := time.Parse(time.RFC3339, o.CriadoEmUtc)
			if err != nil || (!q.From.IsZero() && created.Before(q.From)) || (!q.To.IsZero() && created.After(q.To)) {
				continue
			}
		}
		all = append(all, *o)
	}
	s.Store.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, q.Page, q.Size), len(all)
}

func (s *OrderService) Create(ctx context.Context, who Caller, in portalsdk.OrderCreate) (portalsdk.Order, error) {
	if !in.Valor.IsPositive() || in.Metodo == "" {
		return portalsdk.Order{}, ErrInvalidInput
	}

	s.Store.mu.Lock()
	defer s.Store.mu.Unlock()

	o := portalsdk.Order{
		ID:          s.Store.nextID(),
		Valor:       in.Valor.Round(2),
		Status:      portalsdk.OrderPendente,
		Metodo:      in.Metodo,
		VendedorID:  who.AccountID,
		Cliente:     in.Cliente,
		Descricao:   in.Descricao,
		CriadoEmUtc: s.Now().UTC().Format(time.RFC3339),
	}
	s.Store.orders[o.ID] = &o
	return o, nil
}

func (s *OrderService) Get(ctx context.Context, who Caller, id int64) (portalsdk.Order, error) {
	s.Store.mu.Lock()
	defer s.Store.mu.Unlock()

	o, ok := s.Store.orders[id]
	if !ok || !who.owns(o.VendedorID) {
		return portalsdk.Order{}, ErrNotFound
	}
	return *o, nil
}

func (s *OrderService) UpdateStatus(ctx context.Context, who Caller, id int64, status portalsdk.OrderStatus) (portalsdk.Order, error) {
	if !status.Valid() {
		return portalsdk.Order{}, ErrInvalidInput
	}

	s.Store.mu.Lock()
	defer s.Store.mu.Unlock()

	o, ok := s.Store.orders[id]
	if !ok || !who.owns(o.VendedorID) {
		return portalsdk.Order{}, ErrNotFound
	}
	o.Status = status
	return *o, nil
}

type TransferService struct {
	Store *Store
	Now   func() time.Time

	// FeeRate is the share of each withdrawal kept as a fee.
	FeeRate decimal.Decimal
}

// TransferQuery filters transfers. Nil/zero fields match everything.
type TransferQuery struct {
	Status        *portalsdk.TransferStatus
	SolicitanteID *int64
	From, To      time.Time
	Page, Size    int
}

func (s *TransferService) List(ctx context.Context, who Caller, q TransferQuery) ([]portalsdk.Transfer, int) {
	s.Store.mu.Lock()
	var all []portalsdk.Transfer
	for _, t := range s.Store.transfers {
		if !who.owns(t.SolicitanteID) {
			continue
		}
		if q.SolicitanteID != nil && t.SolicitanteID != *q.SolicitanteID {
			continue
		}
		if q.Status != nil && t.Status != *q.Status {
			continue
		}
		if !q.From.IsZero() || !q.To.IsZero() {
			created, err := time.Parse(time.RFC3339, t.DataSolicitacao)
			if err != nil || (!q.From.IsZero() && created.Before(q.From)) || (!q.To.IsZero() && created.After(q.To)) {
				continue
			}
		}
		all = append(all, *t)
	}
	s.Store.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, q.Page, q.Size), len(all)
}

// Create files a withdrawal request; the fee is FeeRate of the amount,
// rounded to cents.
func (s *TransferService) Create(ctx context.Context, who Caller, requester string, in portalsdk.TransferCreate) (portalsdk.Transfer, error) {
	if err := in.Validate(); err != nil {
		return portalsdk.Transfer{}, ErrInvalidInput
	}

	valor := in.ValorSolicitado.Round(2)
	taxa := valor.Mul(s.FeeRate).Round(2)
	now := s.Now().UTC().Format(time.RFC3339)

	s.Store.mu.Lock()
	defer s.Store.mu.Unlock()

	t := portalsdk.Transfer{
		ID:              s.Store.nextID(),
		DataSolicitacao: now,
		ValorSolicitado: valor,
		SolicitanteID:   who.AccountID,
		Nome:            requester,
		Produto:         in.Produto,
		Status:          portalsdk.TransferPendente,
		ChavePix:        in.ChavePix,
		TipoEnvio:       in.TipoEnvio,
		Taxa:            taxa,
		ValorFinal:      valor.Sub(taxa),
		DataCadastro:    now,
	}
	s.Store.transfers[t.ID] = &t
	return t, nil
}

func (s *TransferService) Get(ctx context.Context, who Caller, id int64) (portalsdk.Transfer, error) {
	s.Store.mu.Lock()
	defer s.Store.mu.Unlock()

	t, ok := s.Store.transfers[id]
	if !ok || !who.owns(t.SolicitanteID) {
		return portalsdk.Transfer{}, ErrNotFound
	}
	return *t, nil
}

// UpdateStatus approves or rejects a withdrawal. Admin only.
func (s *TransferService) UpdateStatus(ctx context.Context, who Caller, id int64, status portalsdk.TransferStatus) (portalsdk.Transfer, error) {
	if !who.Admin {
		return portalsdk.Transfer{}, ErrForbidden
	}

	s.Store.mu.Lock()
	defer s.Store.mu.Unlock()

	t, ok := s.Store.transfers[id]
	if !ok {
		return portalsdk.Transfer{}, ErrNotFound
	}
	t.Status = status
	if status == portalsdk.TransferAprovada {
		t.DataAprovacao = s.Now().UTC().Format(time.RFC3339)
	}
	return *t, nil
}

// WebhookInput is a decoded create/update payload.
type WebhookInput struct {
	URL     string
	Ativo   bool
	Secret  string
	Eventos []string // backend names
}

type WebhookService struct {
	Store *Store
	Now   func() time.Time
}

func (s *WebhookService) List(ctx context.Context, who Caller) []portalsdk.Webhook {
	s.Store.mu.Lock()
	defer s.Store.mu.Unlock()

	out := []portalsdk.Webhook{}
	for _, w := range s.Store.webhooks {
		if who.owns(w.OwnerID) {
			out = append(out, w.Webhook)
		}
	}
	slices.SortFunc(out, func(a, b portalsdk.Webhook) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *WebhookService) Get(ctx context.Context, who Caller, id int64) (portalsdk.Webhook, error) {
	s.Store.mu.Lock()
	defer s.Store.mu.Unlock()

	w, ok := s.Store.webhooks[id]
	if !ok || !who.owns(w.OwnerID) {
		return portalsdk.Webhook{}, ErrNotFound
	}
	return w.Webhook, nil
}

func (s *WebhookService) Create(ctx context.Context, who Caller, in WebhookInput) (portalsdk.Webhook, error) {
	mask, err := portalsdk.EncodeEventsMask(in.Eventos)
	if err != nil || in.URL == "" {
		return portalsdk.Webhook{}, ErrInvalidInput
	}
	now := s.Now().UTC().Format(time.RFC3339)

	s.Store.mu.Lock()
	defer s.Store.mu.Unlock()

	w := &webhookRecord{
		Webhook: portalsdk.Webhook{
			ID:              s.Store.nextID(),
			URL:             portalsdk.NormalizeWebhookURL(in.URL),
			Ativo:           in.Ativo,
			HasSecret:       in.Secret != "",
			Eventos:         in.Eventos,
			EventosMask:     mask,
			CriadoEmUtc:     now,
			AtualizadoEmUtc: now,
		},
		OwnerID: who.AccountID,
		Secret:  in.Secret,
	}
	s.Store.webhooks[w.ID] = w
	return w.Webhook, nil
}

// Update replaces the webhook. An empty Secret keeps the current one.
func (s *WebhookService) Update(ctx context.Context, who Caller, id int64, in WebhookInput) (portalsdk.Webhook, error) {
	mask, err := portalsdk.EncodeEventsMask(in.Eventos)
	if err != nil || in.URL == "" {
		return portalsdk.Webhook{}, ErrInvalidInput
	}

	s.Store.mu.Lock()
	defer s.Store.mu.Unlock()

	w, ok := s.Store.webhooks[id]
	if !ok || !who.owns(w.OwnerID) {
		return portalsdk.Webhook{}, ErrNotFound
	}
	w.URL = portalsdk.NormalizeWebhookURL(in.URL)
	w.Ativo = in.Ativo
	w.Eventos = in.Eventos
	w.EventosMask = mask
	if in.Secret != "" {
		w.Secret = in.Secret
		w.HasSecret = true
	}
	w.AtualizadoEmUtc = s.Now().UTC().Format(time.RFC3339)
	return w.Webhook, nil
}

func (s *WebhookService) Delete(ctx context.Context, who Caller, id int64) error {
	s.Store.mu.Lock()
	defer s.Store.mu.Unlock()

	w, ok := s.Store.webhooks[id]
	if !ok || !who.owns(w.OwnerID) {
		return ErrNotFound
	}
	delete(s.Store.webhooks, id)
	return nil
}

func paginate[T any](items []T, page, size int) []T {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := min(start+size, len(items))
	return items[start:end]
}
