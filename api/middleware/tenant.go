package middleware

import (
	"context"
	"net/http"
	"strings"
)

const tenantIDHeader = "X-Tenant-Id"

// TenantResolver maps an incoming request to a tenant identifier. The
// single-database deployment resolves from the token claim or header; other
// deployments can swap in their own resolution.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, r *http.Request) (string, error)
}

// HeaderTenantResolver prefers the authenticated claim and falls back to the
// X-Tenant-Id header.
type HeaderTenantResolver struct{}

func (HeaderTenantResolver) ResolveTenant(ctx context.Context, r *http.Request) (string, error) {
	if tenantID := TenantIDFromContext(ctx); tenantID != "" {
		return tenantID, nil
	}
	return strings.TrimSpace(r.Header.Get(tenantIDHeader)), nil
}

// Tenant seeds the request context with the resolved tenant. Requests without
// a tenant pass through; multi-tenant enforcement happens at the data layer.
func Tenant(resolver TenantResolver) func(http.Handler) http.Handler {
	if resolver == nil {
		resolver = HeaderTenantResolver{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if tenantID, err := resolver.ResolveTenant(ctx, r); err == nil && tenantID != "" {
				ctx = WithTenantID(ctx, tenantID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
