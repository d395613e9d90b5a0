package inventory

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

var productExportHeader = []string{"sku", "name", "unit", "cost", "price", "low_stock_threshold", "created_at"}

// ExportProductsCSV streams the org's product catalog as CSV.
func (s *Service) ExportProductsCSV(ctx context.Context, actor rbac.Actor, w io.Writer) error {
	products, err := s.ListProducts(ctx, actor)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(productExportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range products {
		record := []string{
			p.SKU,
			p.Name,
			p.Unit,
			p.Cost.String(),
			p.Price.String(),
			p.LowStockThreshold.String(),
			p.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
