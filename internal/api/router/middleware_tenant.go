package router

import (
	"net/http"
	"strings"

	"github.com/agendadigital/agenda-platform/internal/tenancy"
)

const tenantHeader = "X-Tenant-Id"

// requireTenant resolves the X-Tenant-Id header against the registry and
// injects the full tenant into the request context. Every API route runs
// behind it; handlers never see an unresolved tenant.
func requireTenant(registry *tenancy.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(tenantHeader))
			if id == "" {
				http.Error(w, "missing X-Tenant-Id", http.StatusBadRequest)
				return
			}
			t, ok := registry.Lookup(id)
			if !ok {
				http.Error(w, "unknown tenant", http.StatusNotFound)
				return
			}
			ctx := tenancy.WithTenant(r.Context(), t)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
