package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	entries []Entry
}

func (m *memoryRepo) Timeline(_ context.Context, orgID uuid.UUID, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultTimelineLimit
	}
	var out []Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.OrgID != orgID {
			continue
		}
		if f.Entity != "" && e.Entity != f.Entity {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if !f.From.IsZero() && e.OccurredAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && e.OccurredAt.After(f.To) {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func TestTimelineFiltersAndAuthorization(t *testing.T) {
	orgID := uuid.New()
	actorID := uuid.New()
	base := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	repo := &memoryRepo{entries: []Entry{
		{ID: 1, OrgID: orgID, Action: "CREATE", Entity: "invoice", EntityID: "a", OccurredAt: base},
		{ID: 2, OrgID: orgID, Action: "STATUS_CHANGE", Entity: "invoice", EntityID: "a", OccurredAt: base.Add(time.Hour)},
		{ID: 3, OrgID: orgID, Action: "CREATE", Entity: "expense", EntityID: "b", OccurredAt: base.Add(2 * time.Hour)},
		{ID: 4, OrgID: uuid.New(), Action: "CREATE", Entity: "invoice", EntityID: "c", OccurredAt: base},
	}}
	svc := NewService(repo)
	admin := rbac.Actor{OrgID: orgID, UserID: actorID, Role: rbac.RoleOrgAdmin}

	entries, err := svc.Timeline(context.Background(), admin, Filter{Entity: "invoice"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].ID)
	assert.Equal(t, int64(1), entries[1].ID)

	entries, err = svc.Timeline(context.Background(), admin, Filter{Action: "CREATE", From: base.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "expense", entries[0].Entity)

	staff := rbac.Actor{OrgID: orgID, UserID: uuid.New(), Role: rbac.RoleStaff}
	_, err = svc.Timeline(context.Background(), staff, Filter{})
	assert.True(t, errors.Is(err, shared.ErrForbidden))
}

func TestExportCSV(t *testing.T) {
	orgID := uuid.New()
	actorID := uuid.New()
	branchID := uuid.New()
	at := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	repo := &memoryRepo{entries: []Entry{
		{
			ID:         7,
			OrgID:      orgID,
			BranchID:   &branchID,
			ActorID:    &actorID,
			Action:     "SUBMIT",
			Entity:     "purchase_request",
			EntityID:   "pr-1",
			Details:    map[string]any{"from": "DRAFT", "to": "SUBMITTED"},
			OccurredAt: at,
		},
	}}
	svc := NewService(repo)
	admin := rbac.Actor{OrgID: orgID, UserID: actorID, Role: rbac.RoleOrgAdmin}

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), admin, Filter{}, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, exportHeader, records[0])
	row := records[1]
	assert.Equal(t, "7", row[0])
	assert.Equal(t, "2024-03-10T09:30:00Z", row[1])
	assert.Equal(t, actorID.String(), row[2])
	assert.Equal(t, branchID.String(), row[3])
	assert.Equal(t, "SUBMIT", row[4])
	assert.Equal(t, "purchase_request", row[5])
	assert.JSONEq(t, `{"from":"DRAFT","to":"SUBMITTED"}`, row[7])

	viewer := rbac.Actor{OrgID: orgID, UserID: uuid.New(), Role: rbac.RoleViewer}
	assert.True(t, errors.Is(svc.ExportCSV(context.Background(), viewer, Filter{}, &buf), shared.ErrForbidden))
}
