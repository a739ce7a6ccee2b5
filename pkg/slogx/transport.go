package slogx

import (
	"log/slog"
	"net/http"
	"time"
)

// Transport is the client-side twin of HTTPMiddleware. It stamps every
// outbound request with an X-Request-ID and logs the exchange at debug
// level (warn for 5xx and transport failures).
type Transport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := t.Logger
	if logger == nil {
		logger = FromContext(req.Context())
	}

	reqID, fresh := requestID(req.Header)
	if fresh {
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, reqID)
	}

	log := logger.With("req_id", reqID, "method", req.Method, "path", req.URL.Path)
	start := time.Now()

	resp, err := base.RoundTrip(req)
	if err != nil {
		log.Warn("http_call_failed", "err", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	level := slog.LevelDebug
	if resp.StatusCode >= http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	log.Log(req.Context(), level, "http_call",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}
