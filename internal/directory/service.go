package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgergate/ledgergate/internal/shared"
)

// RepositoryPort describes the storage operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id string) (Employee, error)
	ManagerOf(ctx context.Context, employeeID string) (string, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// Service answers directory lookups. It also validates cross-store actor
// references: budget rows carry subject ids issued by the identity provider,
// and nothing in the relational store enforces that those ids exist, so the
// application checks here before writing them.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the directory service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns one employee.
func (s *Service) Get(ctx context.Context, id string) (Employee, error) {
	if s.repo == nil {
		return Employee{}, errors.New("directory: repository not configured")
	}
	return s.repo.Get(ctx, id)
}

// ManagerOf resolves one hop of the reporting chain.
func (s *Service) ManagerOf(ctx context.Context, employeeID string) (string, error) {
	if s.repo == nil {
		return "", errors.New("directory: repository not configured")
	}
	return s.repo.ManagerOf(ctx, employeeID)
}

// ValidateRef confirms that an actor id refers to a known directory entry.
func (s *Service) ValidateRef(ctx context.Context, id string) error {
	if s.repo == nil {
		return errors.New("directory: repository not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: actor reference required", shared.ErrValidation)
	}
	found, err := s.repo.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: unknown actor %q", shared.ErrValidation, id)
	}
	return nil
}
