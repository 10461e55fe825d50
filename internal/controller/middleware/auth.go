// Package middleware contains HTTP middleware for the controller: tenant
// authentication and per-tenant rate limiting.
package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"forgerun/internal/auth"
	"forgerun/internal/domain"
	"forgerun/internal/store"
)

// tenantKey is the context key under which the authenticated tenant is
// stored.
type tenantKey struct{}

// AuthMiddleware extracts the bearer API key, hashes it, and resolves the
// owning tenant through the store. A resolved tenant is attached to the
// request context for downstream handlers and the rate limiter.
func AuthMiddleware(tenants store.TenantStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(header, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}

			hashed := auth.HashKey(parts[1])
			tenant, err := tenants.GetTenantByAPIKeyHash(r.Context(), hashed)
			if err != nil && err != sql.ErrNoRows {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if tenant == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := NewContextWithTenant(r.Context(), tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewContextWithTenant attaches the authenticated tenant to ctx.
func NewContextWithTenant(ctx context.Context, tenant *domain.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

// TenantFromContext extracts the authenticated tenant.
func TenantFromContext(ctx context.Context) (*domain.Tenant, bool) {
	t, ok := ctx.Value(tenantKey{}).(*domain.Tenant)
	return t, ok
}

// TenantIDFromContext extracts the authenticated tenant's ID.
func TenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	t, ok := TenantFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(t.ID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
