package sales

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

func TestExportInvoicesCSV(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testLogger())
	actor := seedActor(rbac.RoleStaff)
	customer := seedCustomer(repo, actor.OrgID)

	inv, err := svc.CreateInvoice(context.Background(), actor, CreateInvoiceInput{
		CustomerID: customer.ID,
		TaxRate:    decimal.NewFromFloat(0.11),
		Items: []InvoiceItemInput{{
			ProductID:   productRef(uuid.New()),
			Description: "Kopi arabika 1kg",
			Quantity:    decimal.NewFromInt(2),
			UnitPrice:   decimal.NewFromInt(35000),
		}},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportInvoicesCSV(context.Background(), actor, "", &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, invoiceExportHeader, records[0])
	require.Equal(t, inv.Number, records[1][0])
	require.Equal(t, "DRAFT", records[1][1])
	total, err := decimal.NewFromString(records[1][7])
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.NewFromInt(77700)), "total %s", total)

	// a draft-only filter with no matches yields just the header
	buf.Reset()
	require.NoError(t, svc.ExportInvoicesCSV(context.Background(), actor, InvoiceStatusPaid, &buf))
	records, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
}
