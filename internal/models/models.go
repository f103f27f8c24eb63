package models

import (
	"github.com/shopspring/decimal"
)

// InventoryRow - one item's stock state from an uploaded spreadsheet.
// Lives only for the lifetime of that upload; never persisted.
type InventoryRow struct {
	Item      string          `json:"item"`
	Quantity  int             `json:"quantity"`
	Threshold int             `json:"threshold"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// RestockLineItem - a priced restock recommendation the user can still edit.
// The total is deliberately a method, not a field: the UI lets the user
// change Qty after the plan is generated, and a stored total would go stale.
type RestockLineItem struct {
	Item     string          `json:"item"`
	Qty      int             `json:"qty"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// Total returns Qty * UnitCost, recomputed on every call.
func (li RestockLineItem) Total() decimal.Decimal {
	return li.UnitCost.Mul(decimal.NewFromInt(int64(li.Qty)))
}

// LedgerEntry - a historical payment record. Append-only: once written it is
// never mutated or deleted, so the total is snapshotted as a field here.
type LedgerEntry struct {
	Item     string          `json:"item"`
	Qty      int             `json:"qty"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Total    decimal.Decimal `json:"total"`
	Wallet   string          `json:"wallet"`
}
