package rpc

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit configures per-client throttling. A zero rate disables it.
type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
	// TrustProxyHeaders keys clients on X-Real-IP / X-Forwarded-For. Enable
	// only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

const (
	visitorIdleTTL = 5 * time.Minute
	sweepInterval  = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	limit    RateLimit
	idleTTL  time.Duration
	clockNow func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

func newRateLimiter(limit RateLimit) *rateLimiter {
	if limit.RequestsPerMinute <= 0 {
		return nil
	}
	if limit.Burst <= 0 {
		limit.Burst = 1
	}
	return &rateLimiter{
		limit:    limit,
		idleTTL:  visitorIdleTTL,
		clockNow: time.Now,
		visitors: make(map[string]*visitor),
	}
}

func (r *rateLimiter) allow(id string) bool {
	if r == nil {
		return true
	}
	now := r.clockNow()
	r.mu.Lock()
	defer r.mu.Unlock()
	if now.Sub(r.lastSweep) >= sweepInterval {
		r.sweep(now)
	}
	entry, ok := r.visitors[id]
	if !ok {
		entry = &visitor{limiter: rate.NewLimiter(rate.Limit(r.limit.RequestsPerMinute/60.0), r.limit.Burst)}
		r.visitors[id] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// sweep drops idle visitors. Callers hold r.mu.
func (r *rateLimiter) sweep(now time.Time) {
	for key, v := range r.visitors {
		if now.Sub(v.lastSeen) > r.idleTTL {
			delete(r.visitors, key)
		}
	}
	r.lastSweep = now
}

func (r *rateLimiter) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}

// clientID identifies the caller for throttling. Forwarding headers are only
// consulted when the limiter trusts the fronting proxy.
func (r *rateLimiter) clientID(req *http.Request) string {
	if r != nil && r.limit.TrustProxyHeaders {
		if ip := net.ParseIP(strings.TrimSpace(req.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
		if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
			if ip := net.ParseIP(strings.TrimSpace(strings.Split(fwd, ",")[0])); ip != nil {
				return ip.String()
			}
		}
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
