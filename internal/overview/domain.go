package overview

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// KPIs is the org-wide financial and operational snapshot.
type KPIs struct {
	Revenue          decimal.Decimal `json:"revenue"`
	Expenses         decimal.Decimal `json:"expenses"`
	NetProfit        decimal.Decimal `json:"netProfit"`
	ReceivedPayments decimal.Decimal `json:"receivedPayments"`
	OutstandingAR    decimal.Decimal `json:"outstandingAr"`
	OpenPurchases    decimal.Decimal `json:"openPurchases"`
	LowStock         int             `json:"lowStock"`
	PendingApprovals int             `json:"pendingApprovals"`
}

// Snapshot is the overview payload for one reporting window.
type Snapshot struct {
	Range string `json:"range"`
	KPIs  KPIs   `json:"kpis"`
}

// SearchResult is one cross-entity match.
type SearchResult struct {
	Type     string    `json:"type"`
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Subtitle string    `json:"subtitle"`
}
