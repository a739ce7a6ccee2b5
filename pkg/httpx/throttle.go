package httpx

import (
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// ThrottleTransport is the client-side counterpart of RateLimitMiddleware.
// Requests whose path starts with one of Prefixes wait on a shared token
// bucket before being sent; everything else passes straight through. The
// wait honours the request context, so a cancelled caller is not stuck.
type ThrottleTransport struct {
	Base     http.RoundTripper
	Prefixes []string

	limiter *rate.Limiter
}

// NewThrottleTransport builds a throttle for the given path prefixes.
func NewThrottleTransport(base http.RoundTripper, cfg RateLimitConfig, prefixes ...string) *ThrottleTransport {
	return &ThrottleTransport{
		Base:     base,
		Prefixes: prefixes,
		limiter:  rate.NewLimiter(cfg.Limit(), max(cfg.Burst, 1)),
	}
}

func (t *ThrottleTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if t.matches(req.URL.Path) {
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	return base.RoundTrip(req)
}

func (t *ThrottleTransport) matches(path string) bool {
	for _, p := range t.Prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
