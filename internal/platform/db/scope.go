package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgergate/ledgergate/internal/shared"
)

// SessionScope carries the identity bound to one guarded transaction so the
// store's row policies can see who is asking. It is passed explicitly; there
// is no ambient per-connection state.
type SessionScope struct {
	UserID     string
	Roles      []string
	Department string
}

// WithScopedTx runs fn inside a RepeatableRead transaction with the scope
// bound as transaction-local settings. set_config with is_local=true dies
// with the transaction, so a pooled connection can never carry one caller's
// identity into the next unit of work. A failed bind aborts before any query
// runs.
func WithScopedTx(ctx context.Context, pool *pgxpool.Pool, scope SessionScope, fn func(pgx.Tx) error) error {
	if strings.TrimSpace(scope.UserID) == "" {
		return fmt.Errorf("%w: session scope requires a user id", shared.ErrStorage)
	}
	return WithTx(ctx, pool, func(tx pgx.Tx) error {
		if err := bindScope(ctx, tx, scope); err != nil {
			return fmt.Errorf("%w: bind session scope: %v", shared.ErrStorage, err)
		}
		return fn(tx)
	})
}

func bindScope(ctx context.Context, tx pgx.Tx, scope SessionScope) error {
	batch := &pgx.Batch{}
	batch.Queue(`SELECT set_config('app.user_id', $1, true)`, scope.UserID)
	batch.Queue(`SELECT set_config('app.roles', $1, true)`, RolesLiteral(scope.Roles))
	batch.Queue(`SELECT set_config('app.department', $1, true)`, scope.Department)
	results := tx.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return results.Close()
}

// RolesLiteral renders roles as a Postgres text[] literal so row policies
// test array membership (`current_setting('app.roles')::text[] @> ...`)
// instead of substring matching on a delimited string.
func RolesLiteral(roles []string) string {
	quoted := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		role = strings.ReplaceAll(role, `\`, `\\`)
		role = strings.ReplaceAll(role, `"`, `\"`)
		quoted = append(quoted, `"`+role+`"`)
	}
	return "{" + strings.Join(quoted, ",") + "}"
}
