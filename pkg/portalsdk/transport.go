package portalsdk

import (
	"context"
	"net/http"
)

// TokenSource yields the current bearer token, if a valid one exists.
type TokenSource interface {
	Token() (string, bool)
}

type ambientOnlyKey struct{}

// withAmbientCredentialsOnly marks a request to travel with cookies only,
// without the bearer header.
func withAmbientCredentialsOnly(ctx context.Context) context.Context {
	return context.WithValue(ctx, ambientOnlyKey{}, true)
}

func ambientOnly(ctx context.Context) bool {
	v, _ := ctx.Value(ambientOnlyKey{}).(bool)
	return v
}

// CredentialTransport attaches "Authorization: Bearer <token>" to every
// outgoing request when Tokens has a valid token. Requests without a token
// go out unmodified, and a 401 is returned to the caller as is: there is no
// refresh and retry. Cookies are handled by the client's jar, so ambient
// credentials travel regardless of the token.
type CredentialTransport struct {
	Base   http.RoundTripper
	Tokens TokenSource
}

func (t *CredentialTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if req.Header.Get("Authorization") != "" || ambientOnly(req.Context()) || t.Tokens == nil {
		return base.RoundTrip(req)
	}

	token, ok := t.Tokens.Token()
	if !ok {
		return base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(req)
}
