package httpx

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*limiterEntry
	proxies TrustedProxies
	now     func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows n events per period with a burst of n.
func NewRateLimiter(n int, per time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Every(per / time.Duration(n)),
		burst:   n,
		clients: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

// TrustProxies makes the limiter key requests forwarded by proxies on the
// client address they report.
func (l *RateLimiter) TrustProxies(proxies TrustedProxies) *RateLimiter {
	l.proxies = proxies
	return l
}

// AllowRequest reports whether the client behind r may proceed now.
func (l *RateLimiter) AllowRequest(r *http.Request) bool {
	return l.Allow(l.proxies.ClientIP(r))
}

// Allow reports whether key may proceed now.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.clients[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = e
	}
	e.lastSeen = now
	if len(l.clients) > 10000 {
		l.sweep(now)
	}
	return e.limiter.AllowN(now, 1)
}

func (l *RateLimiter) sweep(now time.Time) {
	for k, e := range l.clients {
		if now.Sub(e.lastSeen) > 10*time.Minute {
			delete(l.clients, k)
		}
	}
}

// Middleware rejects requests over the limit with 429, keyed by client IP.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.AllowRequest(r) {
			w.Header().Set("Retry-After", "60")
			WriteError(w, "Muitas tentativas. Aguarde um minuto e tente novamente.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
