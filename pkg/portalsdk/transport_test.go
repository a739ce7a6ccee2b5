package portalsdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token string
}

func (s staticTokens) Token() (string, bool) { return s.token, s.token != "" }

func TestCredentialTransport(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		got []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.Header.Get("Authorization"))
		mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	send := func(t *testing.T, tokens TokenSource, ctx context.Context, header string) *http.Response {
		t.Helper()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := (&CredentialTransport{Tokens: tokens}).RoundTrip(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, header, req.Header.Get("Authorization"), "caller's request is untouched")
		return resp
	}

	ctx := context.Background()
	send(t, staticTokens{"abc"}, ctx, "")
	send(t, staticTokens{}, ctx, "")
	send(t, staticTokens{"abc"}, withAmbientCredentialsOnly(ctx), "")
	resp := send(t, staticTokens{"abc"}, ctx, "Bearer explicit")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"Bearer abc", "", "", "Bearer explicit"}, got)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "401 is surfaced, not retried")
}
