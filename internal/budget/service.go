package budget

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgergate/ledgergate/internal/authz"
	"github.com/ledgergate/ledgergate/internal/identity"
	"github.com/ledgergate/ledgergate/internal/observability"
	"github.com/ledgergate/ledgergate/internal/platform/db"
	"github.com/ledgergate/ledgergate/internal/shared"
)

// Roles gating workflow transitions. Edit covers draft and submit inside the
// owning department; Approve covers approval decisions.
const (
	RoleEdit    = "budget-edit"
	RoleApprove = "budget-approve"
)

// RepositoryPort describes repository operations used by Service. Every
// transaction carries the caller's session scope so store row policies see
// who is asking.
type RepositoryPort interface {
	WithTx(ctx context.Context, scope db.SessionScope, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Get(ctx context.Context, id string) (Budget, error)
	Insert(ctx context.Context, b Budget) error
	Update(ctx context.Context, b Budget) error
	CompareAndSwapAmount(ctx context.Context, id string, amount float64, expectedVersion int64, next Status) error
	InsertHistory(ctx context.Context, rec HistoryRecord) error
	List(ctx context.Context, department string) ([]Budget, error)
	ListHistory(ctx context.Context, budgetID string) ([]HistoryRecord, error)
}

// RowGuard evaluates row visibility for reads and amendments.
type RowGuard interface {
	CanRead(ctx context.Context, p identity.Principal, row authz.RowRef) (bool, error)
	CanWrite(ctx context.Context, p identity.Principal, row authz.RowRef) (bool, error)
}

// RefValidator checks actor references against the employee directory.
type RefValidator interface {
	ValidateRef(ctx context.Context, id string) error
}

// Recorder receives audit decisions. Denials are recorded at decision time,
// success entries only after the transaction commits.
type Recorder interface {
	Decision(ctx context.Context, actor, action, target, outcome string, meta map[string]any)
}

// Service orchestrates the budget approval workflow.
type Service struct {
	repo      RepositoryPort
	guard     RowGuard
	directory RefValidator
	audit     Recorder
	metrics   *observability.Metrics
	amend     AmendPolicy
	now       func() time.Time
}

// NewService constructs the workflow service. metrics may be nil.
func NewService(repo RepositoryPort, guard RowGuard, directory RefValidator, audit Recorder, metrics *observability.Metrics, amend AmendPolicy) *Service {
	if amend == "" {
		amend = AmendRetain
	}
	return &Service{repo: repo, guard: guard, directory: directory, audit: audit, metrics: metrics, amend: amend, now: time.Now}
}

func scopeFor(p identity.Principal) db.SessionScope {
	return db.SessionScope{UserID: p.ID, Roles: p.Roles.Values(), Department: p.Department}
}

func rowRef(b Budget) authz.RowRef {
	return authz.RowRef{Table: "budgets", OwnerID: b.OwnerID, Department: b.Department}
}

func target(id string) string {
	return "budgets/" + id
}

// CreateInput describes a new draft budget.
type CreateInput struct {
	Department   string
	FiscalPeriod string
	Category     string
	Amount       float64
}

func (in CreateInput) validate() error {
	if strings.TrimSpace(in.Department) == "" {
		return fmt.Errorf("%w: department required", shared.ErrValidation)
	}
	if !ValidFiscalPeriod(in.FiscalPeriod) {
		return fmt.Errorf("%w: fiscal period must be YYYY-Qn", shared.ErrValidation)
	}
	if strings.TrimSpace(in.Category) == "" {
		return fmt.Errorf("%w: category required", shared.ErrValidation)
	}
	if in.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	return nil
}

// Create persists a DRAFT budget owned by the actor.
func (s *Service) Create(ctx context.Context, actor identity.Principal, input CreateInput) (Budget, error) {
	if err := input.validate(); err != nil {
		return Budget{}, err
	}
	if err := s.directory.ValidateRef(ctx, actor.ID); err != nil {
		return Budget{}, err
	}
	if !actor.Roles.Has(RoleEdit) || !authz.SameDepartment(actor.Department, input.Department) {
		s.audit.Decision(ctx, actor.ID, "BUDGET_CREATE", "budgets", "DENY", map[string]any{"department": input.Department})
		return Budget{}, shared.ErrRowDenied
	}
	nowAt := s.now().UTC()
	b := Budget{
		ID:           uuid.NewString(),
		Department:   strings.TrimSpace(input.Department),
		FiscalPeriod: input.FiscalPeriod,
		Category:     strings.TrimSpace(input.Category),
		Amount:       input.Amount,
		Status:       StatusDraft,
		OwnerID:      actor.ID,
		Version:      1,
		CreatedAt:    nowAt,
		UpdatedAt:    nowAt,
	}
	err := s.repo.WithTx(ctx, scopeFor(actor), func(ctx context.Context, tx TxRepository) error {
		return tx.Insert(ctx, b)
	})
	if err != nil {
		return Budget{}, err
	}
	s.audit.Decision(ctx, actor.ID, "BUDGET_CREATE", target(b.ID), "ALLOW", map[string]any{"amount": b.Amount, "department": b.Department})
	return b, nil
}

// Submit moves a DRAFT or REJECTED budget to PENDING_APPROVAL. The actor must
// hold the edit role inside the budget's own department.
func (s *Service) Submit(ctx context.Context, actor identity.Principal, id string) (Budget, error) {
	if err := s.directory.ValidateRef(ctx, actor.ID); err != nil {
		return Budget{}, err
	}
	var out Budget
	err := s.repo.WithTx(ctx, scopeFor(actor), func(ctx context.Context, tx TxRepository) error {
		b, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(b.Status, StatusPending) {
			return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidTransition, b.Status, StatusPending)
		}
		if !actor.Roles.Has(RoleEdit) || !authz.SameDepartment(actor.Department, b.Department) {
			s.audit.Decision(ctx, actor.ID, "BUDGET_SUBMIT", target(id), "DENY", nil)
			return shared.ErrRowDenied
		}
		nowAt := s.now().UTC()
		b.Status = StatusPending
		b.SubmittedBy = actor.ID
		b.SubmittedAt = nowAt
		b.RejectionReason = ""
		b.UpdatedAt = nowAt
		if err := tx.Update(ctx, b); err != nil {
			return err
		}
		if err := tx.InsertHistory(ctx, HistoryRecord{BudgetID: id, Action: ActionSubmitted, ActorID: actor.ID, At: nowAt}); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return Budget{}, err
	}
	s.metrics.Transition(string(ActionSubmitted))
	s.audit.Decision(ctx, actor.ID, "BUDGET_SUBMIT", target(id), "ALLOW", nil)
	return out, nil
}

// Approve moves a PENDING_APPROVAL budget to APPROVED. Separation of duties:
// the submitter can never decide their own budget.
func (s *Service) Approve(ctx context.Context, actor identity.Principal, id string) (Budget, error) {
	return s.decide(ctx, actor, id, StatusApproved, "")
}

// Reject moves a PENDING_APPROVAL budget to REJECTED. An empty reason is a
// validation error and writes nothing, not even history.
func (s *Service) Reject(ctx context.Context, actor identity.Principal, id string, reason string) (Budget, error) {
	if strings.TrimSpace(reason) == "" {
		return Budget{}, shared.ErrReasonRequired
	}
	return s.decide(ctx, actor, id, StatusRejected, strings.TrimSpace(reason))
}

func (s *Service) decide(ctx context.Context, actor identity.Principal, id string, next Status, reason string) (Budget, error) {
	action := "BUDGET_APPROVE"
	histAction := ActionApproved
	if next == StatusRejected {
		action = "BUDGET_REJECT"
		histAction = ActionRejected
	}
	if err := s.directory.ValidateRef(ctx, actor.ID); err != nil {
		return Budget{}, err
	}
	var out Budget
	err := s.repo.WithTx(ctx, scopeFor(actor), func(ctx context.Context, tx TxRepository) error {
		b, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(b.Status, next) {
			return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidTransition, b.Status, next)
		}
		if !actor.Roles.Has(RoleApprove) {
			s.audit.Decision(ctx, actor.ID, action, target(id), "DENY", nil)
			return fmt.Errorf("%w: approval role required", shared.ErrAuthorization)
		}
		if actor.ID == b.SubmittedBy {
			s.audit.Decision(ctx, actor.ID, action, target(id), "DENY", map[string]any{"submitted_by": b.SubmittedBy})
			return shared.ErrSelfApproval
		}
		nowAt := s.now().UTC()
		b.Status = next
		b.UpdatedAt = nowAt
		if next == StatusApproved {
			b.ApprovedBy = actor.ID
			b.ApprovedAt = nowAt
			b.RejectionReason = ""
		} else {
			b.ApprovedBy = ""
			b.ApprovedAt = time.Time{}
			b.RejectionReason = reason
		}
		if err := tx.Update(ctx, b); err != nil {
			return err
		}
		if err := tx.InsertHistory(ctx, HistoryRecord{BudgetID: id, Action: histAction, ActorID: actor.ID, Note: reason, At: nowAt}); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return Budget{}, err
	}
	s.metrics.Transition(string(histAction))
	s.audit.Decision(ctx, actor.ID, action, target(id), "ALLOW", nil)
	return out, nil
}

// Amend changes the amount of an APPROVED budget under optimistic locking.
// A stale expectedVersion returns ErrVersionConflict; the caller re-reads
// and retries.
func (s *Service) Amend(ctx context.Context, actor identity.Principal, id string, newAmount float64, expectedVersion int64) (Budget, error) {
	if newAmount <= 0 {
		return Budget{}, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	if err := s.directory.ValidateRef(ctx, actor.ID); err != nil {
		return Budget{}, err
	}
	var out Budget
	err := s.repo.WithTx(ctx, scopeFor(actor), func(ctx context.Context, tx TxRepository) error {
		b, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != StatusApproved {
			return fmt.Errorf("%w: only approved budgets can be amended, got %s", shared.ErrInvalidTransition, b.Status)
		}
		allowed, err := s.guard.CanWrite(ctx, actor, rowRef(b))
		if err != nil {
			return err
		}
		if !allowed {
			s.audit.Decision(ctx, actor.ID, "BUDGET_AMEND", target(id), "DENY", nil)
			return shared.ErrRowDenied
		}
		next := StatusApproved
		if s.amend == AmendRedraft {
			next = StatusDraft
		}
		if err := tx.CompareAndSwapAmount(ctx, id, newAmount, expectedVersion, next); err != nil {
			return err
		}
		nowAt := s.now().UTC()
		note := fmt.Sprintf("amount %.2f -> %.2f", b.Amount, newAmount)
		if err := tx.InsertHistory(ctx, HistoryRecord{BudgetID: id, Action: ActionRevisionRequested, ActorID: actor.ID, Note: note, At: nowAt}); err != nil {
			return err
		}
		out = b
		out.Amount = newAmount
		out.Version = expectedVersion + 1
		out.Status = next
		out.UpdatedAt = nowAt
		return nil
	})
	if err != nil {
		return Budget{}, err
	}
	s.metrics.Transition(string(ActionRevisionRequested))
	s.audit.Decision(ctx, actor.ID, "BUDGET_AMEND", target(id), "ALLOW", map[string]any{"amount": newAmount, "version": out.Version})
	return out, nil
}

// Get returns one budget with its approval trail, subject to row visibility.
func (s *Service) Get(ctx context.Context, actor identity.Principal, id string) (Budget, []HistoryRecord, error) {
	var (
		out  Budget
		hist []HistoryRecord
	)
	err := s.repo.WithTx(ctx, scopeFor(actor), func(ctx context.Context, tx TxRepository) error {
		b, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		allowed, err := s.guard.CanRead(ctx, actor, rowRef(b))
		if err != nil {
			return err
		}
		if !allowed {
			s.audit.Decision(ctx, actor.ID, "BUDGET_READ", target(id), "DENY", nil)
			return shared.ErrRowDenied
		}
		records, err := tx.ListHistory(ctx, id)
		if err != nil {
			return err
		}
		out = b
		hist = records
		return nil
	})
	if err != nil {
		return Budget{}, nil, err
	}
	return out, hist, nil
}

// List returns budgets visible to the actor. The store's row policies trim
// the result via the bound session scope; an explicit department filter
// narrows further.
func (s *Service) List(ctx context.Context, actor identity.Principal, department string) ([]Budget, error) {
	var out []Budget
	err := s.repo.WithTx(ctx, scopeFor(actor), func(ctx context.Context, tx TxRepository) error {
		items, err := tx.List(ctx, strings.TrimSpace(department))
		if err != nil {
			return err
		}
		out = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
