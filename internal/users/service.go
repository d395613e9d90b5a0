package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts storage for the users service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetUser(ctx context.Context, orgID, id uuid.UUID) (User, error)
	GetUserByEmail(ctx context.Context, orgID uuid.UUID, email string) (User, error)
	ListUsers(ctx context.Context, orgID uuid.UUID) ([]User, error)
}

// Service manages org members and their credentials.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

type CreateUserInput struct {
	BranchID *uuid.UUID
	Email    string
	Name     string
	Role     rbac.Role
	Password string
}

func (s *Service) CreateUser(ctx context.Context, actor rbac.Actor, in CreateUserInput) (User, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionSettingsManage) {
		return User{}, fmt.Errorf("create user: %w", shared.ErrForbidden)
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || in.Name == "" {
		return User{}, fmt.Errorf("email and name are required: %w", ErrValidation)
	}
	if !in.Role.Valid() {
		return User{}, fmt.Errorf("unknown role %q: %w", in.Role, ErrValidation)
	}
	if len(in.Password) < 8 {
		return User{}, fmt.Errorf("password must be at least 8 characters: %w", ErrValidation)
	}
	// org admins cannot mint super admins
	if in.Role == rbac.RoleSuperAdmin && actor.Role != rbac.RoleSuperAdmin {
		return User{}, fmt.Errorf("create user: %w", shared.ErrForbidden)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:           uuid.New(),
		OrgID:        actor.OrgID,
		BranchID:     in.BranchID,
		Email:        in.Email,
		Name:         in.Name,
		Role:         in.Role,
		PasswordHash: string(hash),
		Active:       true,
		CreatedAt:    s.now().UTC(),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertUser(ctx, user); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			ActorID:  &actor.UserID,
			Action:   "CREATE",
			Entity:   "USER",
			EntityID: user.ID.String(),
			Details:  map[string]any{"email": user.Email, "role": string(user.Role)},
			At:       user.CreatedAt,
		})
	})
	if err != nil {
		return User{}, err
	}

	s.logger.Info("user created", slog.String("email", user.Email), slog.String("role", string(user.Role)))
	return user, nil
}

type UpdateUserInput struct {
	BranchID *uuid.UUID
	Name     string
	Role     rbac.Role
	Active   bool
}

func (s *Service) UpdateUser(ctx context.Context, actor rbac.Actor, id uuid.UUID, in UpdateUserInput) (User, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionSettingsManage) {
		return User{}, fmt.Errorf("update user: %w", shared.ErrForbidden)
	}
	if !in.Role.Valid() {
		return User{}, fmt.Errorf("unknown role %q: %w", in.Role, ErrValidation)
	}
	if in.Role == rbac.RoleSuperAdmin && actor.Role != rbac.RoleSuperAdmin {
		return User{}, fmt.Errorf("update user: %w", shared.ErrForbidden)
	}

	user, err := s.repo.GetUser(ctx, actor.OrgID, id)
	if err != nil {
		return User{}, err
	}
	from := user.Role
	user.BranchID = in.BranchID
	user.Name = in.Name
	user.Role = in.Role
	user.Active = in.Active

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateUser(ctx, user); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			ActorID:  &actor.UserID,
			Action:   "UPDATE",
			Entity:   "USER",
			EntityID: user.ID.String(),
			Details:  map[string]any{"from_role": string(from), "to_role": string(user.Role), "active": user.Active},
			At:       s.now().UTC(),
		})
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ChangePassword verifies the current password before storing a new hash.
func (s *Service) ChangePassword(ctx context.Context, actor rbac.Actor, current, next string) error {
	user, err := s.repo.GetUser(ctx, actor.OrgID, actor.UserID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return fmt.Errorf("current password does not match: %w", shared.ErrForbidden)
	}
	if len(next) < 8 {
		return fmt.Errorf("password must be at least 8 characters: %w", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.SetPasswordHash(ctx, user.ID, string(hash)); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			ActorID:  &actor.UserID,
			Action:   "PASSWORD_CHANGE",
			Entity:   "USER",
			EntityID: user.ID.String(),
			At:       s.now().UTC(),
		})
	})
}

// VerifyCredentials checks an email/password pair for the gateway.
func (s *Service) VerifyCredentials(ctx context.Context, orgID uuid.UUID, email, password string) (User, error) {
	user, err := s.repo.GetUserByEmail(ctx, orgID, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return User{}, err
	}
	if !user.Active {
		return User{}, fmt.Errorf("user is inactive: %w", shared.ErrForbidden)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, fmt.Errorf("invalid credentials: %w", shared.ErrForbidden)
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, actor rbac.Actor, id uuid.UUID) (User, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionSettingsManage) && actor.UserID != id {
		return User{}, fmt.Errorf("get user: %w", shared.ErrForbidden)
	}
	return s.repo.GetUser(ctx, actor.OrgID, id)
}

func (s *Service) ListUsers(ctx context.Context, actor rbac.Actor) ([]User, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionSettingsManage) {
		return nil, fmt.Errorf("list users: %w", shared.ErrForbidden)
	}
	return s.repo.ListUsers(ctx, actor.OrgID)
}
