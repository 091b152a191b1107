package identity

import (
	"context"
	"sort"
	"strings"
)

// Principal describes an authenticated actor for the lifetime of one
// request. It is built by the Validator and never persisted.
type Principal struct {
	ID         string
	Roles      RoleSet
	Department string
	Groups     []string
	TokenID    string
	// TokenPrint is a short digest of the raw token, safe for audit metadata.
	TokenPrint string
}

// RoleSet holds role identifiers with exact membership semantics. Roles are
// normalised to lower case on insertion; matching is never substring based.
type RoleSet map[string]struct{}

// NewRoleSet builds a set from the given identifiers, dropping blanks.
func NewRoleSet(roles ...string) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set.Add(r)
	}
	return set
}

// Add inserts a normalised role identifier.
func (s RoleSet) Add(role string) {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return
	}
	s[role] = struct{}{}
}

// Has reports exact membership of a single role.
func (s RoleSet) Has(role string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(role))]
	return ok
}

// HasAny reports whether any of the given roles is a member.
func (s RoleSet) HasAny(roles ...string) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Intersects reports whether the two sets share at least one role.
func (s RoleSet) Intersects(other RoleSet) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for r := range small {
		if _, ok := large[r]; ok {
			return true
		}
	}
	return false
}

// Values returns the members sorted, for stable logging and wire output.
func (s RoleSet) Values() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context for the request scope.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context. The second return
// is false when no authenticated principal is bound.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
