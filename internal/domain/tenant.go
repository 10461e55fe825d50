package domain

import "time"

// Tenant scopes every job, rate limit, and admission decision.
type Tenant struct {
	ID                      string
	Name                    string
	RateLimit               float64 // requests/sec, 0 = unlimited
	RateLimitBurst          int
	MaxConcurrentExecutions int
	CreatedAt               time.Time
}
