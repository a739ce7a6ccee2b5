package portalsdk

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
)

// UserCreate is the initial registration payload.
type UserCreate struct {
	Nome         string            `json:"nome"`
	Email        string            `json:"email"`
	Senha        string            `json:"senha"`
	TipoCadastro *RegistrationType `json:"tipoCadastro,omitempty"`
	CpfCnpj      string            `json:"cpfCnpj,omitempty"`
	Telefone     string            `json:"telefone,omitempty"`
	Instagram    string            `json:"instagram,omitempty"`
}

// UserUpdate is the profile/KYC payload sent by the registration wizard.
type UserUpdate struct {
	Nome         string            `json:"nome"`
	Email        string            `json:"email"`
	Senha        string            `json:"senha,omitempty"`
	TipoCadastro *RegistrationType `json:"tipoCadastro,omitempty"`
	CpfCnpj      string            `json:"cpfCnpj,omitempty"`
	Instagram    string            `json:"instagram,omitempty"`
	Telefone     string            `json:"telefone,omitempty"`
	NomeFantasia string            `json:"nomeFantasia,omitempty"`
	RazaoSocial  string            `json:"razaoSocial,omitempty"`
	Site         string            `json:"site,omitempty"`

	EnderecoCep         string `json:"enderecoCep,omitempty"`
	EnderecoLogradouro  string `json:"enderecoLogradouro,omitempty"`
	EnderecoNumero      string `json:"enderecoNumero,omitempty"`
	EnderecoComplemento string `json:"enderecoComplemento,omitempty"`
	EnderecoBairro      string `json:"enderecoBairro,omitempty"`
	EnderecoCidade      string `json:"enderecoCidade,omitempty"`
	EnderecoUF          string `json:"enderecoUF,omitempty"`

	NomeCompletoBanco   string `json:"nomeCompletoBanco,omitempty"`
	ChavePix            string `json:"chavePix,omitempty"`
	ChaveCarteiraCripto string `json:"chaveCarteiraCripto,omitempty"`
}

// UserResponse is a user as returned by /api/usuarios.
type UserResponse struct {
	ID               int64             `json:"id"`
	Nome             string            `json:"nome"`
	Email            string            `json:"email"`
	TipoCadastro     *RegistrationType `json:"tipoCadastro,omitempty"`
	Instagram        string            `json:"instagram"`
	Telefone         string            `json:"telefone"`
	CreatedAt        string            `json:"createdAt"`
	CpfCnpj          string            `json:"cpfCnpj"`
	CpfCnpjFormatado string            `json:"cpfCnpjFormatado"`
	IsAdmin          bool              `json:"isAdmin"`
	CadastroCompleto bool              `json:"cadastroCompleto"`
}

// ValidationError is a client-side form rule violation. It never reaches
// the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate applies the registration wizard's rules. Company registrations
// need a 14 digit CNPJ and a legal name, individuals an 11 digit CPF; a
// document without a registration type must have either length.
func (u UserUpdate) Validate() error {
	if strings.TrimSpace(u.Nome) == "" {
		return &ValidationError{Field: "nome", Message: "Informe o nome."}
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return &ValidationError{Field: "email", Message: "Informe um e-mail válido."}
	}
	if u.Senha != "" && len(u.Senha) < 8 {
		return &ValidationError{Field: "senha", Message: "A senha deve ter ao menos 8 caracteres."}
	}

	doc := digitsOnly(u.CpfCnpj)
	switch {
	case u.TipoCadastro != nil && *u.TipoCadastro == PessoaJuridica:
		if len(doc) != 14 {
			return &ValidationError{Field: "cpfCnpj", Message: "Informe um CNPJ com 14 dígitos."}
		}
		if strings.TrimSpace(u.RazaoSocial) == "" {
			return &ValidationError{Field: "razaoSocial", Message: "Informe a razão social."}
		}
	case u.TipoCadastro != nil && *u.TipoCadastro == PessoaFisica:
		if len(doc) != 11 {
			return &ValidationError{Field: "cpfCnpj", Message: "Informe um CPF com 11 dígitos."}
		}
	case doc != "" && len(doc) != 11 && len(doc) != 14:
		return &ValidationError{Field: "cpfCnpj", Message: "CPF/CNPJ inválido."}
	}

	if cep := digitsOnly(u.EnderecoCep); u.EnderecoCep != "" && len(cep) != 8 {
		return &ValidationError{Field: "enderecoCep", Message: "CEP deve ter 8 dígitos."}
	}
	if u.EnderecoUF != "" && len(strings.TrimSpace(u.EnderecoUF)) != 2 {
		return &ValidationError{Field: "enderecoUF", Message: "UF deve ter 2 letras."}
	}
	return nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Register creates a merchant account.
func (c *Client) Register(ctx context.Context, in UserCreate) (*UserResponse, error) {
	var out UserResponse
	if _, err := c.call(ctx, http.MethodPost, pathUsers+"/cadastro-inicial", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUsers lists every user. Admin only.
func (c *Client) ListUsers(ctx context.Context) ([]UserResponse, error) {
	var out []UserResponse
	if _, err := c.call(ctx, http.MethodGet, pathUsers, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUser returns the user or nil when it does not exist.
func (c *Client) GetUser(ctx context.Context, id int64) (*UserResponse, error) {
	var out UserResponse
	resp, err := c.call(ctx, http.MethodGet, userPath(id), nil, nil, &out)
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUser validates and saves the profile.
func (c *Client) UpdateUser(ctx context.Context, id int64, in UserUpdate) (*UserResponse, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out UserResponse
	if _, err := c.call(ctx, http.MethodPut, userPath(id), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteRegistration submits the final KYC step.
func (c *Client) CompleteRegistration(ctx context.Context, id int64, in UserUpdate) (*UserResponse, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out UserResponse
	if _, err := c.call(ctx, http.MethodPut, userPath(id)+"/completar-cadastro", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ForgotPassword asks for a reset link to be emailed.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	_, err := c.call(ctx, http.MethodPost, pathUsers+"/esqueci-senha", nil, map[string]string{"email": email}, nil)
	return err
}

// ResetPassword sets a new password using the emailed token.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	_, err := c.call(ctx, http.MethodPost, pathUsers+"/resetar-senha", nil, map[string]string{
		"token":     token,
		"novaSenha": newPassword,
	}, nil)
	return err
}

// ValidateResetToken reports whether a reset token is still usable. A 4xx
// means no; other failures are returned as errors.
func (c *Client) ValidateResetToken(ctx context.Context, token string) (bool, error) {
	q := url.Values{"token": {token}}
	resp, err := c.call(ctx, http.MethodGet, pathUsers+"/resetar-senha/validar", q, nil, nil)
	if err == nil {
		return true, nil
	}
	if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return false, nil
	}
	return false, err
}

func userPath(id int64) string {
	return pathUsers + "/" + strconv.FormatInt(id, 10)
}

// String implements fmt.Stringer for log output.
func (u UserResponse) String() string {
	return fmt.Sprintf("%d <%s>", u.ID, u.Email)
}
