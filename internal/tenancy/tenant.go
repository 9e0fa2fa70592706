package tenancy

import (
	"fmt"
	"strings"
)

// Mode says how a tenant indexes its scheduled tree: clinic groups index by
// physical unit, single clinics index by physician.
type Mode string

const (
	ModeUnit   Mode = "unit"
	ModeDoctor Mode = "doctor"
)

// IndexNode returns the tree node name used for the sector index.
func (m Mode) IndexNode() string {
	if m == ModeDoctor {
		return "medicos"
	}
	return "unidades"
}

func (m Mode) IsValid() bool {
	return m == ModeUnit || m == ModeDoctor
}

// ModeFromBase resolves the indexing mode from a tenant base path naming
// convention. Resolution happens exactly once, at configuration load; the
// rest of the codebase only ever sees the resulting Mode value.
func ModeFromBase(base string) Mode {
	if strings.HasPrefix(strings.ToUpper(base), "DRM") {
		return ModeUnit
	}
	return ModeDoctor
}

// GatewayCredentials identify one WhatsApp gateway instance.
type GatewayCredentials struct {
	InstanceID  string
	Token       string
	ClientToken string
}

// Tenant is one operating entity: a partition of the ledger tree plus the
// per-tenant resources (history collection, gateway instance, secretary
// channel) hanging off it.
type Tenant struct {
	ID             string
	Base           string
	Mode           Mode
	DisplayName    string
	HistoryKey     string // conversation-history collection name
	SecretaryPhone string
	NotifyEmail    string
	Gateway        GatewayCredentials
}

// Registry resolves tenant ids to fully-configured tenants.
type Registry struct {
	tenants map[string]Tenant
	order   []string
}

func NewRegistry(tenants []Tenant) (*Registry, error) {
	r := &Registry{tenants: make(map[string]Tenant, len(tenants))}
	for _, t := range tenants {
		if strings.TrimSpace(t.ID) == "" {
			return nil, fmt.Errorf("tenancy: tenant id is required")
		}
		if strings.TrimSpace(t.Base) == "" {
			return nil, fmt.Errorf("tenancy: tenant %s: base path is required", t.ID)
		}
		if !t.Mode.IsValid() {
			return nil, fmt.Errorf("tenancy: tenant %s: invalid mode %q", t.ID, t.Mode)
		}
		if _, dup := r.tenants[t.ID]; dup {
			return nil, fmt.Errorf("tenancy: duplicate tenant id %s", t.ID)
		}
		r.tenants[t.ID] = t
		r.order = append(r.order, t.ID)
	}
	return r, nil
}

// Lookup returns the tenant for id.
func (r *Registry) Lookup(id string) (Tenant, bool) {
	t, ok := r.tenants[id]
	return t, ok
}

// All returns every tenant in registration order.
func (r *Registry) All() []Tenant {
	out := make([]Tenant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tenants[id])
	}
	return out
}
