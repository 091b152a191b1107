package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgergate/ledgergate/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the directory.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns one employee by id.
func (r *Repository) Get(ctx context.Context, id string) (Employee, error) {
	var e Employee
	err := r.pool.QueryRow(ctx, `SELECT id, name, department, COALESCE(manager_id,''), created_at, updated_at
FROM employees WHERE id=$1`, id).
		Scan(&e.ID, &e.Name, &e.Department, &e.ManagerID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, shared.ErrNotFound
		}
		return Employee{}, err
	}
	return e, nil
}

// ManagerOf returns the manager id for an employee, empty when the employee
// reports to nobody or does not exist.
func (r *Repository) ManagerOf(ctx context.Context, employeeID string) (string, error) {
	var managerID string
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(manager_id,'') FROM employees WHERE id=$1`, employeeID).
		Scan(&managerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return managerID, nil
}

// Exists reports whether an employee record is present.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var found bool
	err := r.pool.QueryRow(ctx, `SELECT true FROM employees WHERE id=$1`, id).Scan(&found)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return found, nil
}
