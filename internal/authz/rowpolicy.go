package authz

import (
	"context"
	"strings"

	"golang.org/x/text/cases"

	"github.com/ledgergate/ledgergate/internal/identity"
)

// Tier is one row visibility rule contributing to a decision.
type Tier string

const (
	// TierSelf grants access when the row's owner is the principal.
	TierSelf Tier = "self"
	// TierManager grants access when the principal manages the row's owner.
	TierManager Tier = "manager"
	// TierDepartment grants access within the principal's own department.
	TierDepartment Tier = "department"
	// TierExecutive grants read across all departments, never write.
	TierExecutive Tier = "executive"
)

// TablePolicy declares the ordered, OR-combined read tiers and the separate
// write rule for one protected table.
type TablePolicy struct {
	Table     string
	ReadTiers []Tier
	// DepartmentRoles are the roles satisfying the department tier for this
	// table's domain.
	DepartmentRoles identity.RoleSet
	// ExecutiveRoles satisfy the executive tier.
	ExecutiveRoles identity.RoleSet
	// WriteRoles satisfy the write rule. Holding a read tier never implies
	// write access.
	WriteRoles identity.RoleSet
	// WriteSelf additionally lets the row owner mutate its own rows.
	WriteSelf bool
}

// RowRef identifies the row under decision.
type RowRef struct {
	Table      string
	OwnerID    string
	Department string
}

// Evaluator decides per-row access. Deny by default: a table without a
// policy, or a row matching no tier, is inaccessible.
type Evaluator struct {
	policies map[string]TablePolicy
	chain    ReportingChain
	maxDepth int
}

// NewEvaluator builds an evaluator over the given table policies.
func NewEvaluator(chain ReportingChain, maxDepth int, policies ...TablePolicy) *Evaluator {
	table := make(map[string]TablePolicy, len(policies))
	for _, p := range policies {
		name := strings.ToLower(strings.TrimSpace(p.Table))
		if name == "" {
			continue
		}
		p.Table = name
		table[name] = p
	}
	return &Evaluator{policies: table, chain: chain, maxDepth: maxDepth}
}

// BudgetsTablePolicy is the row policy for the budgets table: owners,
// their managers and department peers holding the budget role may read,
// executives read everything, and mutations require the approver role or
// row ownership.
func BudgetsTablePolicy() TablePolicy {
	return TablePolicy{
		Table:           "budgets",
		ReadTiers:       []Tier{TierSelf, TierManager, TierDepartment, TierExecutive},
		DepartmentRoles: identity.NewRoleSet("budget-edit", "finance-read"),
		ExecutiveRoles:  identity.NewRoleSet("executive"),
		WriteRoles:      identity.NewRoleSet("budget-approve"),
		WriteSelf:       true,
	}
}

// CanRead evaluates the table's read tiers in order and grants on the first
// match.
func (e *Evaluator) CanRead(ctx context.Context, p identity.Principal, row RowRef) (bool, error) {
	policy, ok := e.policies[strings.ToLower(strings.TrimSpace(row.Table))]
	if !ok {
		return false, nil
	}
	for _, tier := range policy.ReadTiers {
		match, err := e.matchTier(ctx, tier, policy, p, row)
		if err != nil {
			return false, err
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

// CanWrite evaluates only the write rule. Executives never gain write access
// through their read tier.
func (e *Evaluator) CanWrite(ctx context.Context, p identity.Principal, row RowRef) (bool, error) {
	policy, ok := e.policies[strings.ToLower(strings.TrimSpace(row.Table))]
	if !ok {
		return false, nil
	}
	if policy.WriteSelf && row.OwnerID != "" && row.OwnerID == p.ID {
		return true, nil
	}
	return p.Roles.Intersects(policy.WriteRoles), nil
}

func (e *Evaluator) matchTier(ctx context.Context, tier Tier, policy TablePolicy, p identity.Principal, row RowRef) (bool, error) {
	switch tier {
	case TierSelf:
		return row.OwnerID != "" && row.OwnerID == p.ID, nil
	case TierManager:
		return IsManagerOf(ctx, e.chain, p.ID, row.OwnerID, e.maxDepth)
	case TierDepartment:
		return SameDepartment(p.Department, row.Department) && p.Roles.Intersects(policy.DepartmentRoles), nil
	case TierExecutive:
		return p.Roles.Intersects(policy.ExecutiveRoles), nil
	default:
		return false, nil
	}
}

// SameDepartment compares department identifiers with Unicode case folding,
// so "Finance" and "finance" are the same department. A Caser is stateful,
// so each comparison folds with its own.
func SameDepartment(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	fold := cases.Fold()
	return fold.String(a) == fold.String(b)
}
