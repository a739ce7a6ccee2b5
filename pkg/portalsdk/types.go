package portalsdk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexString decodes a JSON string or number into a string. The backend
// sends numeric user ids while stored sessions keep them as strings.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("flexstring: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// Int64 parses the id as a number, which resource endpoints expect.
func (f FlexString) Int64() (int64, error) {
	return strconv.ParseInt(string(f), 10, 64)
}

// RegistrationType is the merchant's legal person type.
type RegistrationType int

const (
	PessoaFisica RegistrationType = iota
	PessoaJuridica
)

func (t RegistrationType) String() string {
	switch t {
	case PessoaFisica:
		return "pessoa_fisica"
	case PessoaJuridica:
		return "pessoa_juridica"
	default:
		return "desconhecido(" + strconv.Itoa(int(t)) + ")"
	}
}

// User is the identity snapshot kept in the session record. It is replaced
// wholesale after every auth operation, never patched.
type User struct {
	ID    FlexString `json:"id"`
	Email string     `json:"email"`
	Name  string     `json:"name"`
	Nome  string     `json:"nome"`

	IsAdmin          bool   `json:"isAdmin"`
	CadastroCompleto bool   `json:"cadastroCompleto"`
	CreatedAt        string `json:"createdAt"`

	// TipoCadastro is nil when the server did not send it.
	TipoCadastro *RegistrationType `json:"tipoCadastro,omitempty"`

	CpfCnpj             string `json:"cpfCnpj"`
	CpfCnpjFormatado    string `json:"cpfCnpjFormatado"`
	ChavePix            string `json:"chavePix"`
	ChaveCarteiraCripto string `json:"chaveCarteiraCripto"`
	NomeCompletoBanco   string `json:"nomeCompletoBanco"`
	NomeFantasia        string `json:"nomeFantasia"`
	RazaoSocial         string `json:"razaoSocial"`
	Site                string `json:"site"`
	Telefone            string `json:"telefone"`
	Instagram           string `json:"instagram"`

	EnderecoCep         string `json:"enderecoCep"`
	EnderecoLogradouro  string `json:"enderecoLogradouro"`
	EnderecoNumero      string `json:"enderecoNumero"`
	EnderecoComplemento string `json:"enderecoComplemento"`
	EnderecoBairro      string `json:"enderecoBairro"`
	EnderecoCidade      string `json:"enderecoCidade"`
	EnderecoUF          string `json:"enderecoUF"`
}

// DisplayName returns the best name to show for the user.
func (u User) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Nome != "":
		return u.Nome
	default:
		return u.Email
	}
}

// Credentials are what the login form collects.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// AuthResponse is the body of a credential-issuing call: login (200),
// smart 2FA confirmation and refresh.
type AuthResponse struct {
	AccessToken  string `json:"accessToken"`
	ExpiresAtUtc string `json:"expiresAtUtc,omitempty"`
	Usuario      User   `json:"usuario"`
}

// Challenge is a pending step-up verification. It is never persisted.
type Challenge struct {
	ChallengeID  string `json:"challengeId"`
	MaskedEmail  string `json:"maskedEmail"`
	ExpiresAtUtc string `json:"expiresAtUtc,omitempty"`
}
