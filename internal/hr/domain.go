package hr

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Employee is an org-scoped personnel record.
type Employee struct {
	ID        uuid.UUID
	OrgID     uuid.UUID
	BranchID  *uuid.UUID
	UserID    *uuid.UUID
	Name      string
	Position  string
	Email     string
	Phone     string
	HiredAt   *time.Time
	Active    bool
	CreatedAt time.Time
}

// Attendance is one check-in per employee per day; check-out fills in
// later on the same row.
type Attendance struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	EmployeeID uuid.UUID
	Date       time.Time
	CheckIn    time.Time
	CheckOut   *time.Time
	Note       string
}

var (
	// ErrNotFound indicates a missing or out-of-org record.
	ErrNotFound = fmt.Errorf("hr: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("hr: %w", shared.ErrValidation)
	// ErrAlreadyCheckedIn occurs on a second check-in for the same day.
	ErrAlreadyCheckedIn = fmt.Errorf("hr: already checked in today: %w", shared.ErrConflict)
	// ErrNotCheckedIn occurs when a check-out has no matching check-in.
	ErrNotCheckedIn = fmt.Errorf("hr: no check-in today: %w", shared.ErrInvalidState)
)
