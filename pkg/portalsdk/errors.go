package portalsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Generic user-facing messages, used when the server gives nothing better.
const (
	MsgUnexpected         = "Erro inesperado ao chamar o servidor."
	MsgUnexpectedResponse = "Resposta inesperada do servidor."
	Msg2FAFailed          = "Não foi possível confirmar o código. Tente novamente."
	MsgInvalidCode        = "Informe os 6 dígitos do código."
)

var (
	// ErrUnexpectedResponse marks a status or body shape the protocol does
	// not allow, such as a 2xx other than 200/202 from the login endpoint.
	ErrUnexpectedResponse = errors.New("portalsdk: unexpected server response")

	// Err2FAFailed marks a failed step-up confirmation or finalisation.
	Err2FAFailed = errors.New("portalsdk: 2fa failed")

	// ErrInvalidCode is returned before any network call when an OTP code
	// does not have exactly six digits after normalisation.
	ErrInvalidCode = errors.New("portalsdk: invalid 2fa code")

	// ErrTransport marks network level failures.
	ErrTransport = errors.New("portalsdk: transport failure")
)

// APIError is the error every SDK operation returns. Message is safe to
// show to the user as is.
type APIError struct {
	// StatusCode is the HTTP status, zero for transport failures.
	StatusCode int
	Message    string

	// Err is the category (one of the sentinels above) or the underlying
	// transport error, and is what errors.Is matches against.
	Err error
}

// statusMessageFormat is the message of an error body that said nothing.
const statusMessageFormat = "Erro HTTP %d"

func (e *APIError) Error() string {
	if e.StatusCode == 0 || e.Message == fmt.Sprintf(statusMessageFormat, e.StatusCode) {
		return e.Message
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.Err }

// problemBody covers the error shapes the backend is known to send: plain
// {"message"}, RFC 7807 problem details and OAuth2 style errors.
type problemBody struct {
	Message          string `json:"message"`
	Detail           string `json:"detail"`
	Title            string `json:"title"`
	ErrorDescription string `json:"error_description"`
}

// messageFromBody extracts the best user message from an error body,
// preferring message, detail, title then error_description. A short plain
// text body is used verbatim.
func messageFromBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var p problemBody
	if err := json.Unmarshal(body, &p); err == nil {
		for _, m := range []string{p.Message, p.Detail, p.Title, p.ErrorDescription} {
			if m = strings.TrimSpace(m); m != "" {
				return m
			}
		}
		return ""
	}

	// JSON string body
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return strings.TrimSpace(s)
	}

	if strings.HasPrefix(trimmed, "<") || len(trimmed) > 300 {
		return ""
	}
	return trimmed
}

// parseErrorResponse converts a non-2xx response into an *APIError. fallback
// is used when the body carries no message; when empty, "Erro HTTP <code>".
func parseErrorResponse(resp *http.Response, body []byte, category error, fallback string) *APIError {
	msg := messageFromBody(body)
	if msg == "" {
		msg = fallback
	}
	if msg == "" {
		msg = fmt.Sprintf(statusMessageFormat, resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg, Err: category}
}

func transportError(err error) *APIError {
	return &APIError{Message: MsgUnexpected, Err: errors.Join(ErrTransport, err)}
}

func unexpectedResponse(status int) *APIError {
	return &APIError{StatusCode: status, Message: MsgUnexpectedResponse, Err: ErrUnexpectedResponse}
}
