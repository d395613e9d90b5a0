package numbering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	asOf := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	require.Equal(t, "PR-2026-0001", Format(PrefixPurchaseRequest, 0, asOf))
	require.Equal(t, "PO-2026-0042", Format(PrefixPurchaseOrder, 41, asOf))
	require.Equal(t, "INV-2026-1000", Format(PrefixInvoice, 999, asOf))
	// Sequences above 9999 widen instead of wrapping.
	require.Equal(t, "JR-2026-10000", Format(PrefixJournal, 9999, asOf))
}

func TestFormatUsesYearOfDate(t *testing.T) {
	require.Equal(t, "INV-2025-0007", Format(PrefixInvoice, 6, time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC)))
}
