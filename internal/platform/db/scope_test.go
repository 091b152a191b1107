package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgergate/ledgergate/internal/shared"
)

func TestWithScopedTxRejectsEmptyUserID(t *testing.T) {
	err := WithScopedTx(context.Background(), nil, SessionScope{Roles: []string{"finance-read"}}, nil)
	require.ErrorIs(t, err, shared.ErrStorage)
}

func TestRolesLiteral(t *testing.T) {
	require.Equal(t, `{"finance-read","budget-edit"}`, RolesLiteral([]string{"finance-read", "budget-edit"}))
	require.Equal(t, `{}`, RolesLiteral(nil))
	require.Equal(t, `{"a"}`, RolesLiteral([]string{" a ", ""}))
	// Quotes and backslashes must not break out of the array literal.
	require.Equal(t, `{"ro\"le"}`, RolesLiteral([]string{`ro"le`}))
	require.Equal(t, `{"ro\\le"}`, RolesLiteral([]string{`ro\le`}))
}
