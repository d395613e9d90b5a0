package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts storage for the settings service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetBranch(ctx context.Context, orgID, id uuid.UUID) (Branch, error)
	ListBranches(ctx context.Context, orgID uuid.UUID) ([]Branch, error)
}

// Service manages org branches.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

type CreateBranchInput struct {
	Name    string
	Code    string
	Address string
}

// CreateBranch stores a branch and seeds zero stock levels for every
// product the org tracks, all in one transaction.
func (s *Service) CreateBranch(ctx context.Context, actor rbac.Actor, in CreateBranchInput) (Branch, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionSettingsManage) {
		return Branch{}, fmt.Errorf("create branch: %w", shared.ErrForbidden)
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	if in.Name == "" || in.Code == "" {
		return Branch{}, fmt.Errorf("branch name and code are required: %w", ErrValidation)
	}

	branch := Branch{
		ID:        uuid.New(),
		OrgID:     actor.OrgID,
		Name:      in.Name,
		Code:      in.Code,
		Address:   in.Address,
		CreatedAt: s.now().UTC(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertBranch(ctx, branch); err != nil {
			return err
		}
		if err := tx.SeedZeroStockLevels(ctx, actor.OrgID, branch.ID); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			BranchID: &branch.ID,
			ActorID:  &actor.UserID,
			Action:   "CREATE",
			Entity:   "BRANCH",
			EntityID: branch.ID.String(),
			Details:  map[string]any{"code": branch.Code, "name": branch.Name},
			At:       branch.CreatedAt,
		})
	})
	if err != nil {
		return Branch{}, err
	}

	s.logger.Info("branch created", slog.String("code", branch.Code), slog.String("name", branch.Name))
	return branch, nil
}

func (s *Service) GetBranch(ctx context.Context, actor rbac.Actor, id uuid.UUID) (Branch, error) {
	return s.repo.GetBranch(ctx, actor.OrgID, id)
}

func (s *Service) ListBranches(ctx context.Context, actor rbac.Actor) ([]Branch, error) {
	return s.repo.ListBranches(ctx, actor.OrgID)
}
