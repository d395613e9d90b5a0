package hr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// TxRepository exposes the writes one HR transaction may perform.
type TxRepository interface {
	InsertEmployee(ctx context.Context, e Employee) error
	UpdateEmployee(ctx context.Context, e Employee) error
	InsertAttendance(ctx context.Context, a Attendance) error
	GetAttendanceForUpdate(ctx context.Context, orgID, employeeID uuid.UUID, date time.Time) (Attendance, error)
	SetCheckOut(ctx context.Context, id uuid.UUID, at time.Time) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository wraps database access for the HR module.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) InsertEmployee(ctx context.Context, e Employee) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO employees
			(id, org_id, branch_id, user_id, name, position, email, phone, hired_at, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.OrgID, e.BranchID, e.UserID, e.Name, e.Position, e.Email, e.Phone, e.HiredAt, e.Active, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert employee: %w", err)
	}
	return nil
}

func (t *txRepo) UpdateEmployee(ctx context.Context, e Employee) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE employees
		SET branch_id = $3, name = $4, position = $5, email = $6, phone = $7, active = $8
		WHERE org_id = $1 AND id = $2`,
		e.OrgID, e.ID, e.BranchID, e.Name, e.Position, e.Email, e.Phone, e.Active,
	)
	if err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertAttendance(ctx context.Context, a Attendance) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO attendance (id, org_id, employee_id, date, check_in, check_out, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.OrgID, a.EmployeeID, a.Date, a.CheckIn, a.CheckOut, a.Note,
	)
	if err != nil {
		// unique (employee_id, date) guards double check-ins
		if shared.IsUniqueViolation(err) {
			return ErrAlreadyCheckedIn
		}
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

func (t *txRepo) GetAttendanceForUpdate(ctx context.Context, orgID, employeeID uuid.UUID, date time.Time) (Attendance, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, org_id, employee_id, date, check_in, check_out, note
		FROM attendance
		WHERE org_id = $1 AND employee_id = $2 AND date = $3
		FOR UPDATE`,
		orgID, employeeID, date,
	)
	var a Attendance
	err := row.Scan(&a.ID, &a.OrgID, &a.EmployeeID, &a.Date, &a.CheckIn, &a.CheckOut, &a.Note)
	if errors.Is(err, pgx.ErrNoRows) {
		return Attendance{}, ErrNotCheckedIn
	}
	if err != nil {
		return Attendance{}, fmt.Errorf("get attendance: %w", err)
	}
	return a, nil
}

func (t *txRepo) SetCheckOut(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE attendance SET check_out = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("set check-out: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.RecordAuditTx(ctx, t.tx, log)
}

// Pool-backed reads.

func (r *Repository) GetEmployee(ctx context.Context, orgID, id uuid.UUID) (Employee, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, org_id, branch_id, user_id, name, position, email, phone, hired_at, active, created_at
		FROM employees
		WHERE org_id = $1 AND id = $2`,
		orgID, id,
	)
	var e Employee
	err := row.Scan(&e.ID, &e.OrgID, &e.BranchID, &e.UserID, &e.Name, &e.Position, &e.Email, &e.Phone, &e.HiredAt, &e.Active, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrNotFound
	}
	if err != nil {
		return Employee{}, fmt.Errorf("get employee: %w", err)
	}
	return e, nil
}

func (r *Repository) ListEmployees(ctx context.Context, orgID uuid.UUID) ([]Employee, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, branch_id, user_id, name, position, email, phone, hired_at, active, created_at
		FROM employees
		WHERE org_id = $1
		ORDER BY name`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.OrgID, &e.BranchID, &e.UserID, &e.Name, &e.Position, &e.Email, &e.Phone, &e.HiredAt, &e.Active, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) ListAttendance(ctx context.Context, orgID, employeeID uuid.UUID, from, to time.Time) ([]Attendance, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, employee_id, date, check_in, check_out, note
		FROM attendance
		WHERE org_id = $1 AND employee_id = $2 AND date BETWEEN $3 AND $4
		ORDER BY date DESC`,
		orgID, employeeID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var out []Attendance
	for rows.Next() {
		var a Attendance
		if err := rows.Scan(&a.ID, &a.OrgID, &a.EmployeeID, &a.Date, &a.CheckIn, &a.CheckOut, &a.Note); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
