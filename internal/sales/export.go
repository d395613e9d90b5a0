package sales

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

var invoiceExportHeader = []string{"number", "status", "customer_id", "branch_id", "subtotal", "tax_rate", "tax_amount", "total", "issued_at", "paid_at", "created_at"}

// ExportInvoicesCSV streams the org's invoices as CSV, optionally
// filtered by status.
func (s *Service) ExportInvoicesCSV(ctx context.Context, actor rbac.Actor, status InvoiceStatus, w io.Writer) error {
	invoices, err := s.ListInvoices(ctx, actor, status)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(invoiceExportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, inv := range invoices {
		record := []string{
			inv.Number,
			string(inv.Status),
			inv.CustomerID.String(),
			inv.BranchID.String(),
			inv.Subtotal.String(),
			inv.TaxRate.String(),
			inv.TaxAmount.String(),
			inv.Total.String(),
			formatTimePtr(inv.IssuedAt),
			formatTimePtr(inv.PaidAt),
			inv.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
