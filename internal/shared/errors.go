package shared

import (
	"errors"
	"fmt"
)

// Authentication failures. Raised before any data access, never retried.
var (
	// ErrAuthentication is the root of all token verification failures.
	ErrAuthentication = errors.New("authentication failed")
	// ErrInvalidSignature indicates the token signature did not verify.
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", ErrAuthentication)
	// ErrTokenExpired indicates the token is past its expiry.
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrAuthentication)
	// ErrTokenRevoked indicates the token id is present in the revocation store.
	ErrTokenRevoked = fmt.Errorf("%w: token revoked", ErrAuthentication)
	// ErrBadAudience indicates the token was issued for a different audience.
	ErrBadAudience = fmt.Errorf("%w: audience mismatch", ErrAuthentication)
)

// Authorization failures. Fail closed, logged to audit.
var (
	// ErrAuthorization indicates a role or policy denied access.
	ErrAuthorization = errors.New("access denied")
	// ErrSelfApproval enforces separation of duties on budget decisions.
	ErrSelfApproval = fmt.Errorf("%w: submitter cannot decide own budget", ErrAuthorization)
	// ErrRowDenied indicates no row policy tier matched.
	ErrRowDenied = fmt.Errorf("%w: row policy denied", ErrAuthorization)
)

// Validation failures. Rejected before any mutation, no history written.
var (
	// ErrValidation indicates malformed or incomplete input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition indicates a status change outside the lifecycle graph.
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrValidation)
	// ErrReasonRequired indicates a rejection without a reason.
	ErrReasonRequired = fmt.Errorf("%w: rejection reason required", ErrValidation)
)

var (
	// ErrVersionConflict indicates an optimistic-lock mismatch. Callers
	// re-read and retry with a fresh version.
	ErrVersionConflict = errors.New("version conflict")
	// ErrStorage indicates a context-binding or persistence failure. Fatal
	// for the current unit of work.
	ErrStorage = errors.New("storage failure")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
)
