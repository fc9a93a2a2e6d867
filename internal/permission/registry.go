package permission

import (
	"fmt"
	"sort"
)

// Definition is one catalog entry. The catalog is fixed at process start;
// the only runtime mutation anywhere near it is the is_active toggle on the
// persisted mirror, never on the registry itself.
type Definition struct {
	Code        string `json:"code"`
	Module      string `json:"module"`
	Action      string `json:"action"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

// Registry is the immutable permission catalog plus the default role
// template. It is constructed once and passed explicitly to the evaluator
// and the seeding routine; there is no package-level instance.
type Registry struct {
	byCode   map[string]Definition
	ordered  []Definition
	defaults map[string][]string
}

func NewRegistry(defs []Definition, defaults map[string][]string) (*Registry, error) {
	byCode := make(map[string]Definition, len(defs))
	ordered := make([]Definition, 0, len(defs))

	for _, d := range defs {
		if d.Code == "" || d.Module == "" || d.Action == "" {
			return nil, fmt.Errorf("permission definition %+v is missing code, module or action", d)
		}
		if _, exists := byCode[d.Code]; exists {
			return nil, fmt.Errorf("duplicate permission code %q", d.Code)
		}
		byCode[d.Code] = d
		ordered = append(ordered, d)
	}

	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Module != ordered[j].Module {
			return ordered[i].Module < ordered[j].Module
		}
		if ordered[i].Action != ordered[j].Action {
			return ordered[i].Action < ordered[j].Action
		}
		return ordered[i].Code < ordered[j].Code
	})

	cleaned := make(map[string][]string, len(defaults))
	for role, codes := range defaults {
		for _, code := range codes {
			if _, known := byCode[code]; !known {
				return nil, fmt.Errorf("default template for role %q references unknown code %q", role, code)
			}
		}
		copied := append([]string(nil), codes...)
		sort.Strings(copied)
		cleaned[role] = copied
	}

	return &Registry{byCode: byCode, ordered: ordered, defaults: cleaned}, nil
}

// Resolve returns the definition for code, or false when the catalog does
// not know it. Callers decide whether that is a configuration error.
func (r *Registry) Resolve(code string) (Definition, bool) {
	d, ok := r.byCode[code]
	return d, ok
}

// ListAll returns the catalog ordered by module, action, code.
func (r *Registry) ListAll() []Definition {
	out := make([]Definition, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// DefaultGrantsFor returns the template codes for role, empty for roles the
// template does not know.
func (r *Registry) DefaultGrantsFor(role string) []string {
	codes, ok := r.defaults[role]
	if !ok {
		return nil
	}
	out := make([]string, len(codes))
	copy(out, codes)
	return out
}

// DefaultRoles lists every role the template covers, sorted.
func (r *Registry) DefaultRoles() []string {
	roles := make([]string, 0, len(r.defaults))
	for role := range r.defaults {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
	RoleCourier = "courier"
)

// Catalog returns the built-in definitions for the store-operations domain.
func Catalog() []Definition {
	return []Definition{
		{Code: "catalog.view", Module: "catalog", Action: "view", Description: "View products", IsActive: true},
		{Code: "catalog.manage", Module: "catalog", Action: "manage", Description: "Create and edit products", IsActive: true},
		{Code: "inventory.view", Module: "inventory", Action: "view", Description: "View stock levels and batches", IsActive: true},
		{Code: "inventory.adjust", Module: "inventory", Action: "adjust", Description: "Adjust stock levels", IsActive: true},
		{Code: "inventory.batch_manage", Module: "inventory", Action: "batch_manage", Description: "Manage inventory batches", IsActive: true},
		{Code: "orders.view", Module: "orders", Action: "view", Description: "View orders", IsActive: true},
		{Code: "orders.create", Module: "orders", Action: "create", Description: "Create orders", IsActive: true},
		{Code: "orders.update", Module: "orders", Action: "update", Description: "Update orders", IsActive: true},
		{Code: "orders.cancel", Module: "orders", Action: "cancel", Description: "Cancel orders", IsActive: true},
		{Code: "suppliers.view", Module: "suppliers", Action: "view", Description: "View suppliers", IsActive: true},
		{Code: "suppliers.manage", Module: "suppliers", Action: "manage", Description: "Manage suppliers", IsActive: true},
		{Code: "pricing.view", Module: "pricing", Action: "view", Description: "View pricing rules", IsActive: true},
		{Code: "pricing.manage", Module: "pricing", Action: "manage", Description: "Manage pricing rules", IsActive: true},
		{Code: "delivery.view", Module: "delivery", Action: "view", Description: "View deliveries", IsActive: true},
		{Code: "delivery.assign", Module: "delivery", Action: "assign", Description: "Assign deliveries to couriers", IsActive: true},
		{Code: "audit.view", Module: "audit", Action: "view", Description: "View audit history", IsActive: true},
		{Code: "access.manage", Module: "access", Action: "manage", Description: "Grant and revoke role permissions", IsActive: true},
	}
}

// DefaultRoleTemplate is only a seed source and a fallback for roles that
// were never configured; once a role is initialized, explicit grants are the
// sole source of truth.
func DefaultRoleTemplate() map[string][]string {
	all := Catalog()
	adminCodes := make([]string, 0, len(all))
	for _, d := range all {
		adminCodes = append(adminCodes, d.Code)
	}

	return map[string][]string{
		RoleAdmin: adminCodes,
		RoleManager: {
			"catalog.view", "catalog.manage",
			"inventory.view", "inventory.adjust", "inventory.batch_manage",
			"orders.view", "orders.update", "orders.cancel",
			"suppliers.view",
			"pricing.view", "pricing.manage",
			"delivery.view", "delivery.assign",
			"audit.view",
		},
		RoleStaff: {
			"catalog.view",
			"inventory.view",
			"orders.view", "orders.create",
		},
		RoleCourier: {
			"delivery.view",
			"orders.view",
		},
	}
}

// DefaultRegistry builds the registry from the built-in catalog and role
// template.
func DefaultRegistry() (*Registry, error) {
	return NewRegistry(Catalog(), DefaultRoleTemplate())
}
