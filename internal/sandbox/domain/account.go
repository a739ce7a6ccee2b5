package domain

import (
	"strings"
	"time"
)

// Account is a merchant login with its profile.
type Account struct {
	ID               int64
	Email            string
	Nome             string
	PasswordHash     string // argon2 encoded
	IsAdmin          bool
	CadastroCompleto bool
	TipoCadastro     *int // nil until the merchant picks one

	CpfCnpj      string
	Telefone     string
	Instagram    string
	NomeFantasia string
	RazaoSocial  string
	Site         string

	EnderecoCep         string
	EnderecoLogradouro  string
	EnderecoNumero      string
	EnderecoComplemento string
	EnderecoBairro      string
	EnderecoCidade      string
	EnderecoUF          string

	NomeCompletoBanco   string
	ChavePix            string
	ChaveCarteiraCripto string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MaskedEmail hides most of the local part: ana.souza@loja.com becomes
// a********@loja.com.
func (a Account) MaskedEmail() string {
	local, host, ok := strings.Cut(a.Email, "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + strings.Repeat("*", max(len(local)-1, 3)) + "@" + host
}

// FormattedDocument renders an 11 digit CPF or a 14 digit CNPJ with the
// usual punctuation, or returns the input unchanged.
func FormattedDocument(doc string) string {
	switch len(doc) {
	case 11:
		return doc[0:3] + "." + doc[3:6] + "." + doc[6:9] + "-" + doc[9:11]
	case 14:
		return doc[0:2] + "." + doc[2:5] + "." + doc[5:8] + "/" + doc[8:12] + "-" + doc[12:14]
	default:
		return doc
	}
}

// DocumentDigits strips the punctuation from a CPF or CNPJ.
func DocumentDigits(doc string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, doc)
}
