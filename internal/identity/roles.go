package identity

import "strings"

// CompositeRoles maps a composite role identifier to the constituent roles it
// implies, mirroring the realm's composite role definitions.
type CompositeRoles map[string][]string

// DefaultComposites returns the built-in composite role table.
func DefaultComposites() CompositeRoles {
	return CompositeRoles{
		"executive":       {"finance-read", "hr-read", "sales-read", "budget-approve"},
		"finance-manager": {"finance-read", "finance-write", "budget-edit", "budget-approve"},
		"hr-manager":      {"hr-read", "hr-write"},
	}
}

// Expand resolves composite roles into their full constituent set. Expansion
// happens once, at Principal construction, not per resource check. Nested
// composites are followed with a visited set so a mis-defined cycle cannot
// loop.
func (c CompositeRoles) Expand(roles []string) RoleSet {
	out := NewRoleSet()
	visited := make(map[string]struct{}, len(roles))
	stack := make([]string, 0, len(roles))
	for _, r := range roles {
		stack = append(stack, strings.ToLower(strings.TrimSpace(r)))
	}
	for len(stack) > 0 {
		role := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if role == "" {
			continue
		}
		if _, seen := visited[role]; seen {
			continue
		}
		visited[role] = struct{}{}
		out.Add(role)
		for _, implied := range c[role] {
			stack = append(stack, strings.ToLower(strings.TrimSpace(implied)))
		}
	}
	return out
}
