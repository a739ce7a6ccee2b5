package portalsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const (
	pathLogin      = "/api/auth/login"
	pathStart2FA   = "/api/auth/login/2fa/start"
	pathConfirm2FA = "/api/auth/login/2fa/confirm"
	pathRefresh    = "/api/auth/refresh"
	pathLogout     = "/api/auth/logout"

	pathUsers     = "/api/usuarios"
	pathWebhooks  = "/api/webhooks"
	pathOrders    = "/api/pedidos"
	pathTransfers = "/api/transferencias"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// url builds a complete URL by appending the path to the base URL.
func (c *Client) url(path string, query url.Values) string {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do sends a request with an optional JSON body and reads the whole
// response. The returned error is always an *APIError.
func (c *Client) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	in any,
	headers map[string]string,
) (*http.Response, []byte, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, nil, &APIError{Message: MsgUnexpected, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), body)
	if err != nil {
		return nil, nil, &APIError{Message: MsgUnexpected, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, nil, transportError(fmt.Errorf("failed to read response body: %w", err))
	}
	return resp, raw, nil
}

// call is do plus the common status handling: any non-2xx becomes an
// *APIError, and out (when non-nil) is decoded from the body.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, in, out any) (*http.Response, error) {
	resp, body, err := c.do(ctx, method, path, query, in, nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return resp, parseErrorResponse(resp, body, nil, "")
	}
	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp, &APIError{StatusCode: resp.StatusCode, Message: MsgUnexpectedResponse, Err: fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)}
		}
	}
	return resp, nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
