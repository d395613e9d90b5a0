package users

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// User is an org member. PasswordHash never leaves the package.
type User struct {
	ID           uuid.UUID `json:"id"`
	OrgID        uuid.UUID `json:"orgId"`
	BranchID     *uuid.UUID `json:"branchId,omitempty"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         rbac.Role `json:"role"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

var (
	// ErrNotFound indicates a missing or out-of-org user.
	ErrNotFound = fmt.Errorf("users: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("users: %w", shared.ErrValidation)
	// ErrEmailTaken occurs when the email is already registered in the org.
	ErrEmailTaken = fmt.Errorf("users: email already registered: %w", shared.ErrConflict)
)
