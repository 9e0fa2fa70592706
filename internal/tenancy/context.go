package tenancy

import "context"

type ctxKey string

const tenantKey ctxKey = "agenda.tenant"

// WithTenant stores the resolved tenant in context.
func WithTenant(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

// TenantFromContext extracts the tenant if present.
func TenantFromContext(ctx context.Context) (Tenant, bool) {
	val := ctx.Value(tenantKey)
	if val == nil {
		return Tenant{}, false
	}
	t, ok := val.(Tenant)
	return t, ok && t.ID != ""
}
