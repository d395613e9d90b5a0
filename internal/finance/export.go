package finance

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

var expenseExportHeader = []string{"id", "branch_id", "category", "amount", "status", "description", "created_by", "approved_by", "paid_at", "created_at"}

// ExportExpensesCSV streams the org's expenses as CSV, optionally
// filtered by status.
func (s *Service) ExportExpensesCSV(ctx context.Context, actor rbac.Actor, status ExpenseStatus, w io.Writer) error {
	expenses, err := s.ListExpenses(ctx, actor, status)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(expenseExportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range expenses {
		var approvedBy string
		if e.ApprovedBy != nil {
			approvedBy = e.ApprovedBy.String()
		}
		var paidAt string
		if e.PaidAt != nil {
			paidAt = e.PaidAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			e.ID.String(),
			e.BranchID.String(),
			e.Category,
			e.Amount.String(),
			string(e.Status),
			e.Description,
			e.CreatedBy.String(),
			approvedBy,
			paidAt,
			e.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
