package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

var exportHeader = []string{"id", "occurred_at", "actor_id", "branch_id", "action", "entity", "entity_id", "details"}

// ExportCSV streams the filtered timeline as CSV. Export uses a higher
// row cap than the interactive timeline.
func (s *Service) ExportCSV(ctx context.Context, actor rbac.Actor, f Filter, w io.Writer) error {
	if f.Limit <= 0 {
		f.Limit = 1000
	}
	entries, err := s.Timeline(ctx, actor, f)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		var actorID, branchID string
		if e.ActorID != nil {
			actorID = e.ActorID.String()
		}
		if e.BranchID != nil {
			branchID = e.BranchID.String()
		}
		var details string
		if len(e.Details) > 0 {
			raw, err := json.Marshal(e.Details)
			if err != nil {
				return fmt.Errorf("encode audit details: %w", err)
			}
			details = string(raw)
		}
		record := []string{
			strconv.FormatInt(e.ID, 10),
			e.OccurredAt.UTC().Format("2006-01-02T15:04:05Z"),
			actorID,
			branchID,
			e.Action,
			e.Entity,
			e.EntityID,
			details,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
