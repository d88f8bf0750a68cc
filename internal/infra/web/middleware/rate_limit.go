package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/DioGolang/FleetDispatch/pkg/logger"
	"golang.org/x/time/rate"
)

type RateLimiterConfig struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration
	ClientTimeout     time.Duration
}

// ClientLimiter keeps one token bucket per client address.
type ClientLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	config   RateLimiterConfig
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(conf RateLimiterConfig) *ClientLimiter {
	if conf.CleanupInterval <= 0 {
		conf.CleanupInterval = time.Minute
	}
	if conf.ClientTimeout <= 0 {
		conf.ClientTimeout = 3 * time.Minute
	}
	return &ClientLimiter{
		visitors: make(map[string]*visitor),
		config:   conf,
		now:      time.Now,
	}
}

// Run evicts idle clients until ctx is done.
func (d *ClientLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(d.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.evictIdle()
		}
	}
}

func (d *ClientLimiter) evictIdle() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for ip, v := range d.visitors {
		if d.now().Sub(v.lastSeen) > d.config.ClientTimeout {
			delete(d.visitors, ip)
		}
	}
}

func (d *ClientLimiter) Handler(log logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !d.getVisitor(ip).Allow() {
				log.Warn(r.Context(), "rate limit exceeded",
					logger.String("ip", ip),
					logger.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", "1")
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (d *ClientLimiter) getVisitor(ip string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, exists := d.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(d.config.RequestsPerSecond), d.config.Burst)}
		d.visitors[ip] = v
	}
	v.lastSeen = d.now()
	return v.limiter
}

// clientIP prefers the first X-Forwarded-For hop, then the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
