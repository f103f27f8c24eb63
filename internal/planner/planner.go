package planner

import (
	"github.com/shopspring/decimal"

	"github.com/AnjaniMalhotra/auto-restock-agent/internal/models"
)

// DefaultBuffer is the extra stock ordered on top of the gap to threshold.
// A policy number, not a derived one.
const DefaultBuffer = 5

// DerivePlan converts raw inventory rows into a priced restock plan.
// A row becomes a candidate only when its quantity is strictly below its
// threshold; a row sitting exactly at threshold is left alone. The
// recommended quantity is (threshold - quantity + buffer), which is always
// positive for an included row. Row order is preserved so the UI can replay
// the plan deterministically.
func DerivePlan(rows []models.InventoryRow, buffer int) []models.RestockLineItem {
	var plan []models.RestockLineItem

	for _, row := range rows {
		if row.Quantity >= row.Threshold {
			continue
		}
		plan = append(plan, models.RestockLineItem{
			Item:     row.Item,
			Qty:      row.Threshold - row.Quantity + buffer,
			UnitCost: row.UnitCost,
		})
	}

	return plan
}

// Summarize returns the exact total cost of a plan. No rounding happens
// here; callers round at presentation time so error never compounds across
// entries. An empty plan sums to zero.
func Summarize(plan []models.RestockLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range plan {
		total = total.Add(li.Total())
	}
	return total
}
