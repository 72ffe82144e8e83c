package httppresentation

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability/logctx"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL       = 10 * time.Minute
	limiterSweepInterval = time.Minute
	limiterMaxClients    = 4096
)

// ipLimiter hands out one token bucket per client IP. Past limiterMaxClients
// tracked IPs, new clients share a single overflow bucket until a sweep frees room.
type ipLimiter struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	clients   map[string]*clientLimiter
	overflow  *rate.Limiter
	maxSize   int
	lastSweep time.Time
	now       func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(rps float64, burst int) *ipLimiter {
	now := time.Now
	return &ipLimiter{
		rps:       rate.Limit(rps),
		burst:     burst,
		clients:   make(map[string]*clientLimiter),
		overflow:  rate.NewLimiter(rate.Limit(rps), burst),
		maxSize:   limiterMaxClients,
		lastSweep: now(),
		now:       now,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= limiterSweepInterval {
		l.sweep(now)
	}
	c, ok := l.clients[ip]
	if !ok {
		if len(l.clients) >= l.maxSize {
			return l.overflow.AllowN(now, 1)
		}
		c = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (l *ipLimiter) sweep(now time.Time) {
	for k, c := range l.clients {
		if now.Sub(c.lastSeen) > limiterIdleTTL {
			delete(l.clients, k)
		}
	}
	l.lastSweep = now
}

func (l *ipLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// middleware answers 429 once a client IP exhausts its bucket.
func (l *ipLimiter) middleware(fallback observability.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.allow(ip) {
			logctx.FromOr(r.Context(), fallback).Warn("callback_rate_limited",
				observability.F("client_ip", ip),
			)
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
