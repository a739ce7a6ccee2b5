package portalsdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransferStatus is the state of a withdrawal request.
type TransferStatus int

const (
	TransferPendente TransferStatus = iota
	TransferAprovada
	TransferRecusada
	TransferPaga
)

func (s TransferStatus) String() string {
	switch s {
	case TransferPendente:
		return "Pendente"
	case TransferAprovada:
		return "Aprovada"
	case TransferRecusada:
		return "Recusada"
	case TransferPaga:
		return "Paga"
	default:
		return "Status(" + strconv.Itoa(int(s)) + ")"
	}
}

// ParseTransferStatus accepts a status name, in any case, or its code.
func ParseTransferStatus(v string) (TransferStatus, bool) {
	if n, err := strconv.Atoi(v); err == nil {
		s := TransferStatus(n)
		return s, s >= TransferPendente && s <= TransferPaga
	}
	for s := TransferPendente; s <= TransferPaga; s++ {
		if strings.EqualFold(s.String(), v) {
			return s, true
		}
	}
	return 0, false
}

// Transfer is a withdrawal request.
type Transfer struct {
	ID              int64           `json:"id"`
	DataSolicitacao string          `json:"dataSolicitacao"`
	ValorSolicitado decimal.Decimal `json:"valorSolicitado"`
	SolicitanteID   int64           `json:"solicitanteId"`
	Nome            string          `json:"nome"`
	Produto         string          `json:"produto"`
	Status          TransferStatus  `json:"status"`
	Empresa         string          `json:"empresa"`
	ChavePix        string          `json:"chavePix"`
	Aprovacao       int             `json:"aprovacao"`
	TipoEnvio       int             `json:"tipoEnvio"`
	Taxa            decimal.Decimal `json:"taxa"`
	ValorFinal      decimal.Decimal `json:"valorFinal"`
	DataCadastro    string          `json:"dataCadastro"`
	DataAprovacao   string          `json:"dataAprovacao"`
}

// TransferCreate requests a withdrawal.
type TransferCreate struct {
	ValorSolicitado decimal.Decimal `json:"valorSolicitado"`
	ChavePix        string          `json:"chavePix"`
	Produto         string          `json:"produto,omitempty"`
	TipoEnvio       int             `json:"tipoEnvio"`
}

// Validate rejects non-positive amounts and a missing Pix key.
func (t TransferCreate) Validate() error {
	if !t.ValorSolicitado.IsPositive() {
		return &ValidationError{Field: "valorSolicitado", Message: "Informe um valor maior que zero."}
	}
	if t.ChavePix == "" {
		return &ValidationError{Field: "chavePix", Message: "Informe a chave Pix."}
	}
	return nil
}

// TransferFilter selects a page of transfers. Zero values are omitted.
type TransferFilter struct {
	Status        *TransferStatus
	SolicitanteID *int64
	DataInicio    time.Time
	DataFim       time.Time
	Page          int
	PageSize      int
}

func (f TransferFilter) query() url.Values {
	q := pageQuery(f.Page, f.PageSize)
	if f.Status != nil {
		q.Set("status", strconv.Itoa(int(*f.Status)))
	}
	if f.SolicitanteID != nil {
		q.Set("solicitanteId", strconv.FormatInt(*f.SolicitanteID, 10))
	}
	if !f.DataInicio.IsZero() {
		q.Set("dataInicio", f.DataInicio.UTC().Format(time.RFC3339))
	}
	if !f.DataFim.IsZero() {
		q.Set("dataFim", f.DataFim.UTC().Format(time.RFC3339))
	}
	return q
}

// ListTransfers lists withdrawal requests. Some backend versions wrap the
// list under "pedidos" instead of "transferencias"; both are accepted.
func (c *Client) ListTransfers(ctx context.Context, f TransferFilter) (Page[Transfer], error) {
	return listPage[Transfer](ctx, c, pathTransfers, f.query(), "transferencias", "pedidos")
}

func (c *Client) CreateTransfer(ctx context.Context, in TransferCreate) (*Transfer, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out Transfer
	if _, err := c.call(ctx, http.MethodPost, pathTransfers, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTransfer returns the transfer or nil when it does not exist.
func (c *Client) GetTransfer(ctx context.Context, id int64) (*Transfer, error) {
	var out Transfer
	resp, err := c.call(ctx, http.MethodGet, transferPath(id), nil, nil, &out)
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTransferStatus(ctx context.Context, id int64, status TransferStatus) (*Transfer, error) {
	var out Transfer
	body := map[string]TransferStatus{"status": status}
	if _, err := c.call(ctx, http.MethodPut, transferPath(id)+"/status", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func transferPath(id int64) string {
	return pathTransfers + "/" + strconv.FormatInt(id, 10)
}
