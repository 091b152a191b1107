package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgergate/ledgergate/internal/identity"
)

// mapChain backs ReportingChain with a plain employee -> manager map.
type mapChain map[string]string

func (c mapChain) ManagerOf(ctx context.Context, employeeID string) (string, error) {
	return c[employeeID], nil
}

type failingChain struct{}

func (failingChain) ManagerOf(ctx context.Context, employeeID string) (string, error) {
	return "", errors.New("directory unavailable")
}

func budgetsEvaluator(chain ReportingChain) *Evaluator {
	return NewEvaluator(chain, DefaultMaxChainDepth, BudgetsTablePolicy())
}

func budgetRow(owner, dept string) RowRef {
	return RowRef{Table: "budgets", OwnerID: owner, Department: dept}
}

func TestSelfTier(t *testing.T) {
	e := budgetsEvaluator(mapChain{})
	p := identity.Principal{ID: "u-1", Roles: identity.NewRoleSet()}

	ok, err := e.CanRead(context.Background(), p, budgetRow("u-1", "finance"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.CanRead(context.Background(), p, budgetRow("u-2", "finance"))
	require.NoError(t, err)
	require.False(t, ok, "no tier matches: deny by default")
}

func TestManagerTierWalksChainUpward(t *testing.T) {
	// u-3 reports to u-2 reports to u-1.
	chain := mapChain{"u-3": "u-2", "u-2": "u-1"}
	e := budgetsEvaluator(chain)
	boss := identity.Principal{ID: "u-1", Roles: identity.NewRoleSet()}
	peer := identity.Principal{ID: "u-9", Roles: identity.NewRoleSet()}

	ok, err := e.CanRead(context.Background(), boss, budgetRow("u-3", "finance"))
	require.NoError(t, err)
	require.True(t, ok, "transitive manager sees the report's row")

	ok, err = e.CanRead(context.Background(), peer, budgetRow("u-3", "finance"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestManagerTierTerminatesOnCycle(t *testing.T) {
	// Three-node cycle: a -> b -> c -> a.
	chain := mapChain{"a": "b", "b": "c", "c": "a"}
	p := identity.Principal{ID: "outsider", Roles: identity.NewRoleSet()}
	e := budgetsEvaluator(chain)

	ok, err := e.CanRead(context.Background(), p, budgetRow("a", "finance"))
	require.NoError(t, err)
	require.False(t, ok, "cycle walk must return no-match, never hang")
}

func TestManagerTierSurfacesChainErrors(t *testing.T) {
	e := budgetsEvaluator(failingChain{})
	// Self tier misses first, then the manager tier hits the failing chain.
	p := identity.Principal{ID: "u-1", Roles: identity.NewRoleSet()}
	_, err := e.CanRead(context.Background(), p, budgetRow("u-2", "finance"))
	require.Error(t, err)
}

func TestDepartmentTierNeedsRoleAndMatch(t *testing.T) {
	e := budgetsEvaluator(mapChain{})
	ctx := context.Background()

	withRole := identity.Principal{ID: "u-1", Department: "Finance", Roles: identity.NewRoleSet("budget-edit")}
	ok, err := e.CanRead(ctx, withRole, budgetRow("u-2", "finance"))
	require.NoError(t, err)
	require.True(t, ok, "department equality is case-folded")

	wrongDept := identity.Principal{ID: "u-1", Department: "hr", Roles: identity.NewRoleSet("budget-edit")}
	ok, err = e.CanRead(ctx, wrongDept, budgetRow("u-2", "finance"))
	require.NoError(t, err)
	require.False(t, ok)

	noRole := identity.Principal{ID: "u-1", Department: "finance", Roles: identity.NewRoleSet("sales-read")}
	ok, err = e.CanRead(ctx, noRole, budgetRow("u-2", "finance"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExecutiveReadsEverythingWritesNothing(t *testing.T) {
	e := budgetsEvaluator(mapChain{})
	ctx := context.Background()
	exec := identity.Principal{ID: "u-1", Department: "corporate", Roles: identity.NewRoleSet("executive")}

	ok, err := e.CanRead(ctx, exec, budgetRow("u-2", "hr"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.CanWrite(ctx, exec, budgetRow("u-2", "hr"))
	require.NoError(t, err)
	require.False(t, ok, "executive read tier never implies write")
}

func TestWriteRule(t *testing.T) {
	e := budgetsEvaluator(mapChain{})
	ctx := context.Background()

	approver := identity.Principal{ID: "u-1", Roles: identity.NewRoleSet("budget-approve")}
	ok, err := e.CanWrite(ctx, approver, budgetRow("u-2", "finance"))
	require.NoError(t, err)
	require.True(t, ok)

	owner := identity.Principal{ID: "u-2", Roles: identity.NewRoleSet()}
	ok, err = e.CanWrite(ctx, owner, budgetRow("u-2", "finance"))
	require.NoError(t, err)
	require.True(t, ok, "owners may mutate their own rows")

	reader := identity.Principal{ID: "u-3", Department: "finance", Roles: identity.NewRoleSet("budget-edit", "finance-read")}
	ok, err = e.CanWrite(ctx, reader, budgetRow("u-2", "finance"))
	require.NoError(t, err)
	require.False(t, ok, "read tiers never imply write")
}

func TestUnknownTableDenied(t *testing.T) {
	e := budgetsEvaluator(mapChain{})
	p := identity.Principal{ID: "u-1", Roles: identity.NewRoleSet("executive")}
	ok, err := e.CanRead(context.Background(), p, RowRef{Table: "salaries", OwnerID: "u-1"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsManagerOfDepthBound(t *testing.T) {
	// Linear chain with the principal at the top, depth bound of 3.
	linear := mapChain{"e1": "e2", "e2": "e3", "e3": "e4", "e4": "boss"}
	ok, err := IsManagerOf(context.Background(), linear, "boss", "e1", 3)
	require.NoError(t, err)
	require.False(t, ok, "bounded walk gives up past max depth")

	ok, err = IsManagerOf(context.Background(), linear, "boss", "e1", 6)
	require.NoError(t, err)
	require.True(t, ok)
}
