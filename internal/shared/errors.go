package shared

import "errors"

var (
	// ErrNotFound indicates the target entity is missing or outside the caller's org.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the acting role may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState occurs when an action violates a document status workflow.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrInsufficientStock occurs when an outbound movement exceeds on-hand quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrUnbalanced occurs when journal debits and credits do not match.
	ErrUnbalanced = errors.New("journal not balanced")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("invalid input")
	// ErrConflict indicates a duplicate document number or an already-decided approval.
	ErrConflict = errors.New("conflict")
)

// UserSafeMessage returns a message suitable for API consumers. Internal
// errors collapse to a generic message so no stack detail leaks out.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "resource not found"
	case errors.Is(err, ErrForbidden):
		return "operation not allowed for this role"
	case errors.Is(err, ErrInvalidState):
		return "document is not in a valid state for this action"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient stock"
	case errors.Is(err, ErrUnbalanced):
		return "journal debits and credits are not balanced"
	case errors.Is(err, ErrValidation):
		return "invalid input"
	case errors.Is(err, ErrConflict):
		return "request conflicts with existing data"
	default:
		return "internal error"
	}
}
