package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgergate/ledgergate/internal/platform/db"
	"github.com/ledgergate/ledgergate/internal/shared"
)

// Repository provides PostgreSQL backed persistence for budgets.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps fn in a repeatable-read transaction with the session scope
// bound as transaction-local settings.
func (r *Repository) WithTx(ctx context.Context, scope db.SessionScope, fn func(context.Context, TxRepository) error) error {
	return db.WithScopedTx(ctx, r.pool, scope, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const budgetColumns = `id, department, fiscal_period, category, amount, status, owner_id,
       COALESCE(submitted_by, ''), COALESCE(submitted_at, 'epoch'::timestamptz),
       COALESCE(approved_by, ''), COALESCE(approved_at, 'epoch'::timestamptz),
       COALESCE(rejection_reason, ''), version, created_at, updated_at`

func scanBudget(row pgx.Row) (Budget, error) {
	var b Budget
	var submittedAt, approvedAt time.Time
	err := row.Scan(
		&b.ID, &b.Department, &b.FiscalPeriod, &b.Category, &b.Amount, &b.Status, &b.OwnerID,
		&b.SubmittedBy, &submittedAt,
		&b.ApprovedBy, &approvedAt,
		&b.RejectionReason, &b.Version, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return Budget{}, err
	}
	if !submittedAt.Equal(time.Unix(0, 0).UTC()) {
		b.SubmittedAt = submittedAt
	}
	if !approvedAt.Equal(time.Unix(0, 0).UTC()) {
		b.ApprovedAt = approvedAt
	}
	return b, nil
}

func (t *txRepo) Get(ctx context.Context, id string) (Budget, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = $1`, id)
	b, err := scanBudget(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Budget{}, fmt.Errorf("%w: budget %s", shared.ErrNotFound, id)
		}
		return Budget{}, fmt.Errorf("%w: get budget: %v", shared.ErrStorage, err)
	}
	return b, nil
}

func (t *txRepo) Insert(ctx context.Context, b Budget) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO budgets (id, department, fiscal_period, category, amount, status, owner_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.Department, b.FiscalPeriod, b.Category, b.Amount, b.Status, b.OwnerID, b.Version, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert budget: %v", shared.ErrStorage, err)
	}
	return nil
}

func (t *txRepo) Update(ctx context.Context, b Budget) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE budgets
		SET status = $2,
		    submitted_by = NULLIF($3, ''),
		    submitted_at = CASE WHEN $4::timestamptz = 'epoch'::timestamptz THEN NULL ELSE $4::timestamptz END,
		    approved_by = NULLIF($5, ''),
		    approved_at = CASE WHEN $6::timestamptz = 'epoch'::timestamptz THEN NULL ELSE $6::timestamptz END,
		    rejection_reason = NULLIF($7, ''),
		    updated_at = $8
		WHERE id = $1`,
		b.ID, b.Status, b.SubmittedBy, nullableTime(b.SubmittedAt), b.ApprovedBy, nullableTime(b.ApprovedAt), b.RejectionReason, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: update budget: %v", shared.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: budget %s", shared.ErrNotFound, b.ID)
	}
	return nil
}

func nullableTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return t
}

// CompareAndSwapAmount bumps amount and version only when the caller read
// the current version. Zero rows means a stale client version; at
// RepeatableRead a concurrent committed amend surfaces as a serialization
// failure instead, which is the same conflict and equally retryable.
func (t *txRepo) CompareAndSwapAmount(ctx context.Context, id string, amount float64, expectedVersion int64, next Status) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE budgets
		SET amount = $2, version = version + 1, status = $3, updated_at = NOW()
		WHERE id = $1 AND version = $4`,
		id, amount, next, expectedVersion,
	)
	if err != nil {
		if isSerializationFailure(err) {
			return fmt.Errorf("%w: budget %s amended concurrently", shared.ErrVersionConflict, id)
		}
		return fmt.Errorf("%w: amend budget: %v", shared.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: budget %s at version %d", shared.ErrVersionConflict, id, expectedVersion)
	}
	return nil
}

// isSerializationFailure reports whether err is a Postgres concurrency
// abort: 40001 (serialization failure) or 40P01 (deadlock detected).
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func (t *txRepo) InsertHistory(ctx context.Context, rec HistoryRecord) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO approval_history (budget_id, action, actor_id, note, occurred_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		rec.BudgetID, rec.Action, rec.ActorID, rec.Note, rec.At,
	)
	if err != nil {
		return fmt.Errorf("%w: insert history: %v", shared.ErrStorage, err)
	}
	return nil
}

func (t *txRepo) List(ctx context.Context, department string) ([]Budget, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+budgetColumns+`
		FROM budgets
		WHERE $1 = '' OR lower(department) = lower($1)
		ORDER BY created_at DESC`, department)
	if err != nil {
		return nil, fmt.Errorf("%w: list budgets: %v", shared.ErrStorage, err)
	}
	defer rows.Close()
	var out []Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan budget: %v", shared.ErrStorage, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list budgets: %v", shared.ErrStorage, err)
	}
	return out, nil
}

func (t *txRepo) ListHistory(ctx context.Context, budgetID string) ([]HistoryRecord, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, budget_id, action, actor_id, COALESCE(note, ''), occurred_at
		FROM approval_history
		WHERE budget_id = $1
		ORDER BY occurred_at ASC, id ASC`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("%w: list history: %v", shared.ErrStorage, err)
	}
	defer rows.Close()
	var out []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		if err := rows.Scan(&rec.ID, &rec.BudgetID, &rec.Action, &rec.ActorID, &rec.Note, &rec.At); err != nil {
			return nil, fmt.Errorf("%w: scan history: %v", shared.ErrStorage, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list history: %v", shared.ErrStorage, err)
	}
	return out, nil
}
