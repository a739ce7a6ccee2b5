package httpx_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestIPKeyExtractor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{name: "remote address", want: "192.0.2.10"},
		{name: "first forwarded hop", headers: map[string]string{"X-Forwarded-For": "203.0.113.1, 192.0.2.10"}, want: "203.0.113.1"},
		{name: "real ip header", headers: map[string]string{"X-Real-IP": " 203.0.113.2 "}, want: "203.0.113.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.0.2.10:5000"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, httpx.IPKeyExtractor(req))
		})
	}
}

func TestJSONFieldKeyExtractor(t *testing.T) {
	t.Parallel()

	t.Run("lower cases and restores the body", func(t *testing.T) {
		t.Parallel()
		body := `{"email":" Ana@Loja.com ","senha":"x"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))

		require.Equal(t, "ana@loja.com", httpx.JSONFieldKeyExtractor("email")(req))

		rest, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.Equal(t, body, string(rest))
	})

	t.Run("a body past the read limit reaches the handler whole", func(t *testing.T) {
		t.Parallel()
		body := `{"email":"ana@loja.com","nota":"` + strings.Repeat("x", 2<<20) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

		require.Empty(t, httpx.JSONFieldKeyExtractor("email")(req))

		rest, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.Len(t, rest, len(body))
		require.Equal(t, body, string(rest))
	})

	t.Run("non string field", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":42}`))
		require.Empty(t, httpx.JSONFieldKeyExtractor("email")(req))
	})

	t.Run("not json", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`email=ana`))
		require.Empty(t, httpx.JSONFieldKeyExtractor("email")(req))
	})
}

func TestJoinKeysSkipsEmpty(t *testing.T) {
	t.Parallel()

	fixed := func(k string) httpx.KeyExtractor {
		return func(*http.Request) string { return k }
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	require.Equal(t, "a|c", httpx.JoinKeys(fixed("a"), fixed(""), fixed("c"))(req))
	require.Empty(t, httpx.JoinKeys(fixed(""))(req))
}

func TestUserIDKeyExtractorWithoutAuth(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background())
	require.Empty(t, httpx.UserIDKeyExtractor(req))
}
