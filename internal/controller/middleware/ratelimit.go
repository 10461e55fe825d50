package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"forgerun/internal/domain"
)

type cachedLimiter struct {
	limiter   *rate.Limiter
	expiresAt time.Time
}

// RateLimiter enforces each tenant's requests/sec budget independently,
// using the tenant attached to the request context by AuthMiddleware.
type RateLimiter struct {
	ttl      time.Duration
	limiters sync.Map // tenant ID -> *cachedLimiter
}

// Option configures a RateLimiter.
type Option func(*RateLimiter)

// WithTTL sets how long an idle tenant's limiter is kept before eviction.
func WithTTL(ttl time.Duration) Option {
	return func(r *RateLimiter) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// NewRateLimiter constructs a RateLimiter with the given options.
func NewRateLimiter(opts ...Option) *RateLimiter {
	r := &RateLimiter{ttl: 5 * time.Minute}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Middleware returns the http.Handler wrapper. RateLimit=0 on a tenant
// means unlimited.
func (r *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			tenant, ok := TenantFromContext(req.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if tenant.RateLimit > 0 {
				limiter := r.getOrCreate(tenant)
				if !limiter.Allow() {
					w.Header().Set("Retry-After", "1")
					http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
					return
				}
			}
			next.ServeHTTP(w, req)
		})
	}
}

func (r *RateLimiter) getOrCreate(tenant *domain.Tenant) *rate.Limiter {
	if v, ok := r.limiters.Load(tenant.ID); ok {
		cached := v.(*cachedLimiter)
		if time.Now().Before(cached.expiresAt) {
			return cached.limiter
		}
	}

	limiter := rate.NewLimiter(rate.Limit(tenant.RateLimit), tenant.RateLimitBurst)
	r.limiters.Store(tenant.ID, &cachedLimiter{
		limiter:   limiter,
		expiresAt: time.Now().Add(r.ttl),
	})
	return limiter
}
