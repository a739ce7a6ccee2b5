package httpx

import (
	"math"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// RateLimitConfig allows RequestsPerWindow requests per Window, with Burst
// requests available up front.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// Limit converts the window based config into a per second rate.
func (c RateLimitConfig) Limit() rate.Limit {
	if c.Window <= 0 || c.RequestsPerWindow <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(c.RequestsPerWindow) / c.Window.Seconds())
}

var (
	// StrictLimit guards the credential endpoints: login, 2FA, registration
	// and password reset. Tuned with the RATELIMIT_STRICT_* variables.
	StrictLimit = ParseRateLimitFromEnv("STRICT", RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5})

	// ModerateLimit guards authenticated resource calls. Tuned with the
	// RATELIMIT_MODERATE_* variables.
	ModerateLimit = ParseRateLimitFromEnv("MODERATE", RateLimitConfig{RequestsPerWindow: 60, Window: time.Minute, Burst: 60})
)

// ParseRateLimitFromEnv overrides def with RATELIMIT_<prefix>_REQUESTS,
// RATELIMIT_<prefix>_WINDOW_SEC and RATELIMIT_<prefix>_BURST. Values that
// are not positive integers are ignored.
func ParseRateLimitFromEnv(prefix string, def RateLimitConfig) RateLimitConfig {
	positive := func(name string) (int, bool) {
		n, err := strconv.Atoi(os.Getenv("RATELIMIT_" + prefix + "_" + name))
		return n, err == nil && n > 0
	}

	cfg := def
	if n, ok := positive("REQUESTS"); ok {
		cfg.RequestsPerWindow = n
	}
	if n, ok := positive("WINDOW_SEC"); ok {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := positive("BURST"); ok {
		cfg.Burst = n
	}
	return cfg
}

// idleTTL is how long a key's bucket outlives its last request.
const idleTTL = 10 * time.Minute

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// buckets holds one token bucket per key and sweeps idle ones at most once
// per idleTTL.
type buckets struct {
	cfg RateLimitConfig

	mu    sync.Mutex
	byKey map[string]*bucket
	swept time.Time
}

func newBuckets(cfg RateLimitConfig) *buckets {
	return &buckets{cfg: cfg, byKey: make(map[string]*bucket), swept: time.Now()}
}

// take spends a token for key. When none is left it reports how long until
// one is.
func (b *buckets) take(key string, now time.Time) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.swept) > idleTTL {
		for k, v := range b.byKey {
			if now.Sub(v.seen) > idleTTL {
				delete(b.byKey, k)
			}
		}
		b.swept = now
	}

	bk, ok := b.byKey[key]
	if !ok {
		bk = &bucket{lim: rate.NewLimiter(b.cfg.Limit(), b.cfg.Burst)}
		b.byKey[key] = bk
	}
	bk.seen = now

	if bk.lim.AllowN(now, 1) {
		return true, 0
	}
	r := bk.lim.ReserveN(now, 1)
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	return false, wait
}

// RateLimitMiddleware answers 429 with a Retry-After header once the bucket
// for a request's key is empty.
func RateLimitMiddleware(cfg RateLimitConfig, key KeyExtractor) Middleware {
	b := newBuckets(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := b.take(k, time.Now())
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			slogx.FromContext(r.Context()).Warn("rate limited", "key", k, "retry_after_s", secs)

			w.Header().Set("Retry-After", strconv.Itoa(secs))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Window", cfg.Window.String())
			WriteMessage(w, http.StatusTooManyRequests, "Muitas tentativas. Tente novamente em instantes.")
		})
	}
}

// RateLimitByIP charges the client address.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, IPKeyExtractor)
}

// RateLimitByIPAndJSONField charges the client address together with a JSON
// body field, e.g. login attempts per address and email.
func RateLimitByIPAndJSONField(cfg RateLimitConfig, field string) Middleware {
	return RateLimitMiddleware(cfg, JoinKeys(IPKeyExtractor, JSONFieldKeyExtractor(field)))
}

// RateLimitByUser charges the authenticated account. It must run after
// AuthnMiddleware.
func RateLimitByUser(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, UserIDKeyExtractor)
}
