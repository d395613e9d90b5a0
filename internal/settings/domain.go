package settings

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Branch is an org location. Every document and stock level hangs off one.
type Branch struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"orgId"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}

var (
	// ErrNotFound indicates a missing or out-of-org branch.
	ErrNotFound = fmt.Errorf("settings: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("settings: %w", shared.ErrValidation)
	// ErrCodeTaken occurs when the branch code is already used in the org.
	ErrCodeTaken = fmt.Errorf("settings: branch code already used: %w", shared.ErrConflict)
)
