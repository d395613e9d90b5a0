package hr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts storage for the HR service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetEmployee(ctx context.Context, orgID, id uuid.UUID) (Employee, error)
	ListEmployees(ctx context.Context, orgID uuid.UUID) ([]Employee, error)
	ListAttendance(ctx context.Context, orgID, employeeID uuid.UUID, from, to time.Time) ([]Attendance, error)
}

// Service implements employee records and daily attendance.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

type EmployeeInput struct {
	BranchID *uuid.UUID
	UserID   *uuid.UUID
	Name     string
	Position string
	Email    string
	Phone    string
	HiredAt  *time.Time
}

func (s *Service) CreateEmployee(ctx context.Context, actor rbac.Actor, in EmployeeInput) (Employee, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionHRWrite) {
		return Employee{}, fmt.Errorf("create employee: %w", shared.ErrForbidden)
	}
	if in.Name == "" {
		return Employee{}, fmt.Errorf("employee name is required: %w", ErrValidation)
	}

	employee := Employee{
		ID:        uuid.New(),
		OrgID:     actor.OrgID,
		BranchID:  in.BranchID,
		UserID:    in.UserID,
		Name:      in.Name,
		Position:  in.Position,
		Email:     in.Email,
		Phone:     in.Phone,
		HiredAt:   in.HiredAt,
		Active:    true,
		CreatedAt: s.now().UTC(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertEmployee(ctx, employee); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			ActorID:  &actor.UserID,
			Action:   "CREATE",
			Entity:   "EMPLOYEE",
			EntityID: employee.ID.String(),
			Details:  map[string]any{"name": employee.Name, "position": employee.Position},
			At:       employee.CreatedAt,
		})
	})
	if err != nil {
		return Employee{}, err
	}
	return employee, nil
}

type UpdateEmployeeInput struct {
	BranchID *uuid.UUID
	Name     string
	Position string
	Email    string
	Phone    string
	Active   bool
}

func (s *Service) UpdateEmployee(ctx context.Context, actor rbac.Actor, id uuid.UUID, in UpdateEmployeeInput) (Employee, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionHRWrite) {
		return Employee{}, fmt.Errorf("update employee: %w", shared.ErrForbidden)
	}
	if in.Name == "" {
		return Employee{}, fmt.Errorf("employee name is required: %w", ErrValidation)
	}

	employee, err := s.repo.GetEmployee(ctx, actor.OrgID, id)
	if err != nil {
		return Employee{}, err
	}
	employee.BranchID = in.BranchID
	employee.Name = in.Name
	employee.Position = in.Position
	employee.Email = in.Email
	employee.Phone = in.Phone
	employee.Active = in.Active

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateEmployee(ctx, employee); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			ActorID:  &actor.UserID,
			Action:   "UPDATE",
			Entity:   "EMPLOYEE",
			EntityID: employee.ID.String(),
			Details:  map[string]any{"name": employee.Name, "active": employee.Active},
			At:       s.now().UTC(),
		})
	})
	if err != nil {
		return Employee{}, err
	}
	return employee, nil
}

// CheckIn opens today's attendance row for the employee. The unique
// (employee, date) constraint makes a second check-in a conflict no matter
// how the requests race.
func (s *Service) CheckIn(ctx context.Context, actor rbac.Actor, employeeID uuid.UUID, note string) (Attendance, error) {
	employee, err := s.repo.GetEmployee(ctx, actor.OrgID, employeeID)
	if err != nil {
		return Attendance{}, err
	}
	if !employee.Active {
		return Attendance{}, fmt.Errorf("employee is inactive: %w", ErrValidation)
	}

	now := s.now().UTC()
	attendance := Attendance{
		ID:         uuid.New(),
		OrgID:      actor.OrgID,
		EmployeeID: employee.ID,
		Date:       now.Truncate(24 * time.Hour),
		CheckIn:    now,
		Note:       note,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertAttendance(ctx, attendance); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			ActorID:  &actor.UserID,
			Action:   "CHECK_IN",
			Entity:   "ATTENDANCE",
			EntityID: attendance.ID.String(),
			Details:  map[string]any{"employee": employee.Name, "date": attendance.Date.Format("2006-01-02")},
			At:       now,
		})
	})
	if err != nil {
		return Attendance{}, err
	}
	return attendance, nil
}

// CheckOut stamps the check-out time on today's attendance row.
func (s *Service) CheckOut(ctx context.Context, actor rbac.Actor, employeeID uuid.UUID) (Attendance, error) {
	if _, err := s.repo.GetEmployee(ctx, actor.OrgID, employeeID); err != nil {
		return Attendance{}, err
	}

	now := s.now().UTC()
	today := now.Truncate(24 * time.Hour)

	var attendance Attendance
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		attendance, err = tx.GetAttendanceForUpdate(ctx, actor.OrgID, employeeID, today)
		if err != nil {
			return err
		}
		if err := tx.SetCheckOut(ctx, attendance.ID, now); err != nil {
			return err
		}
		attendance.CheckOut = &now
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			ActorID:  &actor.UserID,
			Action:   "CHECK_OUT",
			Entity:   "ATTENDANCE",
			EntityID: attendance.ID.String(),
			Details:  map[string]any{"date": today.Format("2006-01-02")},
			At:       now,
		})
	})
	if err != nil {
		return Attendance{}, err
	}
	return attendance, nil
}

func (s *Service) GetEmployee(ctx context.Context, actor rbac.Actor, id uuid.UUID) (Employee, error) {
	return s.repo.GetEmployee(ctx, actor.OrgID, id)
}

func (s *Service) ListEmployees(ctx context.Context, actor rbac.Actor) ([]Employee, error) {
	return s.repo.ListEmployees(ctx, actor.OrgID)
}

func (s *Service) ListAttendance(ctx context.Context, actor rbac.Actor, employeeID uuid.UUID, from, to time.Time) ([]Attendance, error) {
	return s.repo.ListAttendance(ctx, actor.OrgID, employeeID, from, to)
}
