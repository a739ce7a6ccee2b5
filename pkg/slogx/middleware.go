package slogx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/portal/pkg/idx"
)

// RequestIDHeader carries the correlation id between the SDK and the API.
const RequestIDHeader = "X-Request-ID"

// requestID returns the id already on h, or a fresh one.
func requestID(h http.Header) (id string, fresh bool) {
	if id = h.Get(RequestIDHeader); id != "" {
		return id, false
	}
	return idx.New().String(), true
}

// access collects attributes added by inner handlers through With so the
// single access line carries them.
type access struct {
	attrs []any
}

type accessKey struct{}

// HTTPMiddleware gives every request a logger tagged with its request id and
// writes one access line when the handler returns. A request id sent by the
// caller is reused so SDK and server logs line up.
func HTTPMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID, _ := requestID(r.Header)
			w.Header().Set(RequestIDHeader, reqID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			acc := &access{}
			logger := base.With("req_id", reqID, "method", r.Method, "path", r.URL.Path)

			ctx := context.WithValue(r.Context(), accessKey{}, acc)
			next.ServeHTTP(rec, r.WithContext(WithContext(ctx, logger)))

			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := append([]any{
				"status", rec.status,
				"bytes", rec.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
			}, acc.attrs...)
			logger.Log(r.Context(), level, "http_request", attrs...)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter

	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}
