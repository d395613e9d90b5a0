// Package numbering issues sequential, human-readable document numbers
// scoped per organization and document kind.
package numbering

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Document prefixes used across modules.
const (
	PrefixPurchaseRequest = "PR"
	PrefixPurchaseOrder   = "PO"
	PrefixInvoice         = "INV"
	PrefixJournal         = "JR"
)

// Format renders "{PREFIX}-{year}-{seq:04d}" where seq is currentCount+1.
// Callers that read the count themselves must do so inside the same
// transaction as the document insert, otherwise two concurrent creations
// can observe the same count. Next is the serialized variant.
func Format(prefix string, currentCount int64, asOf time.Time) string {
	return formatSeq(prefix, currentCount+1, asOf)
}

func formatSeq(prefix string, seq int64, asOf time.Time) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, asOf.Year(), seq)
}

// Next returns the next document number for (org, prefix), bumping a
// per-key counter row inside the caller's transaction. The upsert takes a
// row lock, so concurrent creations serialize on the counter and cannot
// produce duplicate numbers; the unique (org_id, number) constraint on
// each document table backstops the guarantee.
func Next(ctx context.Context, tx pgx.Tx, orgID uuid.UUID, prefix string, asOf time.Time) (string, error) {
	var seq int64
	err := tx.QueryRow(ctx, `INSERT INTO doc_counters (org_id, prefix, counter)
VALUES ($1, $2, 1)
ON CONFLICT (org_id, prefix) DO UPDATE SET counter = doc_counters.counter + 1
RETURNING counter`, orgID, prefix).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("numbering: next %s: %w", prefix, err)
	}
	return formatSeq(prefix, seq, asOf), nil
}
