package budget

import (
	"fmt"
	"time"

	"github.com/ledgergate/ledgergate/internal/shared"
)

// Budget lifecycle statuses.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPending  Status = "PENDING_APPROVAL"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// History actions recorded per transition.
type HistoryAction string

const (
	ActionSubmitted         HistoryAction = "SUBMITTED"
	ActionApproved          HistoryAction = "APPROVED"
	ActionRejected          HistoryAction = "REJECTED"
	ActionRevisionRequested HistoryAction = "REVISION_REQUESTED"
)

// AmendPolicy decides the status of an approved budget after its amount
// is amended.
type AmendPolicy string

const (
	// AmendRetain keeps the budget APPROVED after an amendment.
	AmendRetain AmendPolicy = "retain"
	// AmendRedraft sends the budget back to DRAFT for a fresh approval round.
	AmendRedraft AmendPolicy = "redraft"
)

// ParseAmendPolicy validates a configured policy name. Empty means retain.
func ParseAmendPolicy(raw string) (AmendPolicy, error) {
	switch AmendPolicy(raw) {
	case "", AmendRetain:
		return AmendRetain, nil
	case AmendRedraft:
		return AmendRedraft, nil
	}
	return "", fmt.Errorf("%w: unknown amend policy %q", shared.ErrValidation, raw)
}

// ValidFiscalPeriod reports whether s names a fiscal quarter, "YYYY-Qn"
// with n in 1..4.
func ValidFiscalPeriod(s string) bool {
	if len(s) != 7 || s[4] != '-' || s[5] != 'Q' {
		return false
	}
	for _, c := range s[:4] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s[6] >= '1' && s[6] <= '4'
}

// Budget domain model. Version counts amendments of the approved amount and
// backs the compare-and-swap on mutation.
type Budget struct {
	ID              string
	Department      string
	FiscalPeriod    string
	Category        string
	Amount          float64
	Status          Status
	OwnerID         string
	SubmittedBy     string
	SubmittedAt     time.Time
	ApprovedBy      string
	ApprovedAt      time.Time
	RejectionReason string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HistoryRecord is one immutable row of the approval trail.
type HistoryRecord struct {
	ID       int64
	BudgetID string
	Action   HistoryAction
	ActorID  string
	Note     string
	At       time.Time
}

// validTransitions is the full lifecycle graph. A rejected budget may be
// revised and resubmitted.
var validTransitions = map[Status][]Status{
	StatusDraft:    {StatusPending},
	StatusPending:  {StatusApproved, StatusRejected},
	StatusRejected: {StatusPending},
	StatusApproved: {StatusDraft},
}

// CanTransition reports whether the lifecycle graph permits from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
