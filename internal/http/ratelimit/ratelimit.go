package ratelimit

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"gitea.jw6.us/james/calhub/internal/metrics"
)

const defaultMaxEntries = 10000

// IPRateLimiter keeps one token bucket per client address.
type IPRateLimiter struct {
	mu             sync.Mutex
	limiters       map[netip.Addr]*limiterEntry
	rate           rate.Limit
	burst          int
	idle           time.Duration
	maxEntries     int
	trustedProxies []netip.Prefix
	now            func() time.Time
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewIPRateLimiter creates a limiter allowing r requests per second with the
// given burst. Entries idle for longer than idle are dropped. trustedProxies
// lists CIDRs or single addresses whose forwarding headers are honoured; when
// empty, forwarding headers are always honoured.
func NewIPRateLimiter(r rate.Limit, burst int, idle time.Duration, trustedProxies []string) *IPRateLimiter {
	return &IPRateLimiter{
		limiters:       make(map[netip.Addr]*limiterEntry),
		rate:           r,
		burst:          burst,
		idle:           idle,
		maxEntries:     defaultMaxEntries,
		trustedProxies: parsePrefixes(trustedProxies),
		now:            time.Now,
	}
}

func parsePrefixes(values []string) []netip.Prefix {
	var prefixes []netip.Prefix
	for _, v := range values {
		v = strings.TrimSpace(v)
		if p, err := netip.ParsePrefix(v); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(v); err == nil {
			a = a.Unmap()
			prefixes = append(prefixes, netip.PrefixFrom(a, a.BitLen()))
		}
	}
	return prefixes
}

// Run drops idle entries every interval until ctx is cancelled.
func (l *IPRateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *IPRateLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.idle)
	for addr, entry := range l.limiters {
		if entry.lastAccess.Before(cutoff) {
			delete(l.limiters, addr)
		}
	}
}

func (l *IPRateLimiter) limiterFor(addr netip.Addr) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.limiters[addr]
	if !ok {
		if len(l.limiters) >= l.maxEntries {
			l.evictOldest()
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[addr] = entry
	}
	entry.lastAccess = now
	return entry.limiter
}

func (l *IPRateLimiter) evictOldest() {
	var (
		oldest     netip.Addr
		oldestTime time.Time
	)
	for addr, entry := range l.limiters {
		if !oldest.IsValid() || entry.lastAccess.Before(oldestTime) {
			oldest = addr
			oldestTime = entry.lastAccess
		}
	}
	if oldest.IsValid() {
		delete(l.limiters, oldest)
	}
}

// Middleware rejects requests over the limit with 429.
func (l *IPRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := l.clientAddr(r)
			if !l.limiterFor(addr).AllowN(l.now(), 1) {
				metrics.ObserveRateLimited()
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(l.rate)))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(r rate.Limit) int {
	if r <= 0 || r >= 1 {
		return 1
	}
	return int(1/float64(r)) + 1
}

func (l *IPRateLimiter) clientAddr(r *http.Request) netip.Addr {
	remote := parseAddr(r.RemoteAddr)
	if len(l.trustedProxies) > 0 && !l.trusted(remote) {
		return remote
	}

	// X-Forwarded-For is "client, proxy1, proxy2"; the leftmost entry is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if a, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return a.Unmap()
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if a, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
			return a.Unmap()
		}
	}
	return remote
}

func (l *IPRateLimiter) trusted(addr netip.Addr) bool {
	for _, p := range l.trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// parseAddr accepts host:port or a bare address. Unparseable input maps to
// the zero Addr, which shares a single bucket.
func parseAddr(s string) netip.Addr {
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}
	}
	return a.Unmap()
}
