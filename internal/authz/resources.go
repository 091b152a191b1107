package authz

import (
	"sort"
	"strings"

	"github.com/ledgergate/ledgergate/internal/identity"
)

// ResourcePolicy names a protected downstream resource and the roles that may
// reach it. Any one matching role grants access.
type ResourcePolicy struct {
	Name          string
	RequiredRoles identity.RoleSet
}

// Registry is the static resource policy table consulted at the routing
// layer. Unknown resources are denied.
type Registry struct {
	policies map[string]ResourcePolicy
}

// NewRegistry builds a registry from the given policies.
func NewRegistry(policies ...ResourcePolicy) *Registry {
	table := make(map[string]ResourcePolicy, len(policies))
	for _, p := range policies {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			continue
		}
		p.Name = name
		table[name] = p
	}
	return &Registry{policies: table}
}

// DefaultRegistry returns the built-in resource policy table.
func DefaultRegistry() *Registry {
	return NewRegistry(
		ResourcePolicy{Name: "finance", RequiredRoles: identity.NewRoleSet("finance-read", "finance-write", "finance-manager", "executive")},
		ResourcePolicy{Name: "hr", RequiredRoles: identity.NewRoleSet("hr-read", "hr-write", "hr-manager", "executive")},
		ResourcePolicy{Name: "sales", RequiredRoles: identity.NewRoleSet("sales-read", "sales-write", "executive")},
		ResourcePolicy{Name: "budgets", RequiredRoles: identity.NewRoleSet("budget-edit", "budget-approve", "finance-manager", "executive")},
		ResourcePolicy{Name: "audit", RequiredRoles: identity.NewRoleSet("audit-read", "executive")},
	)
}

// CanAccess reports whether the principal's expanded role set intersects the
// resource's required roles. Matching is exact set membership.
func (r *Registry) CanAccess(p identity.Principal, resource string) bool {
	policy, ok := r.policies[strings.ToLower(strings.TrimSpace(resource))]
	if !ok {
		return false
	}
	return p.Roles.Intersects(policy.RequiredRoles)
}

// Accessible returns the sorted names of every resource the principal may
// reach.
func (r *Registry) Accessible(p identity.Principal) []string {
	out := make([]string, 0, len(r.policies))
	for name, policy := range r.policies {
		if p.Roles.Intersects(policy.RequiredRoles) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
