package handlers

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/AnjaniMalhotra/auto-restock-agent/internal/models"
	"github.com/AnjaniMalhotra/auto-restock-agent/internal/reconciler"
)

// PayRequest is the finalized plan the user submits. Quantities may have
// been edited in the UI; items the user unchecked are simply absent.
type PayRequest struct {
	Wallet string    `json:"wallet" binding:"required"`
	Items  []PayItem `json:"items" binding:"required,min=1"`
}

type PayItem struct {
	Item     string          `json:"item" binding:"required"`
	Qty      int             `json:"qty"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// OutcomeView is one reconciliation outcome shaped for JSON.
type OutcomeView struct {
	Item   string `json:"item"`
	Status string `json:"status"`
	Amount string `json:"amount,omitempty"`
	Error  string `json:"error,omitempty"`
}

// PayResponse reports the whole run: one outcome per submitted item, in
// submission order, plus tallies.
type PayResponse struct {
	RunID    string        `json:"run_id"`
	Outcomes []OutcomeView `json:"outcomes"`
	Paid     int           `json:"paid"`
	Failed   int           `json:"failed"`
}

// --- POST: /api/restock/pay ---
// Runs the payment workflow for the submitted plan. Items are processed
// strictly in order; a failure on one item never stops the rest.
func (h *Handler) TriggerPayments(c *gin.Context) {
	var req PayRequest

	// 1. Validate input JSON
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if !h.walletKnown(req.Wallet) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unknown wallet %q", req.Wallet)})
		return
	}

	plan := make([]models.RestockLineItem, 0, len(req.Items))
	for _, it := range req.Items {
		if it.Qty <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Quantity for %q must be positive", it.Item)})
			return
		}
		if it.UnitCost.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unit cost for %q must not be negative", it.Item)})
			return
		}
		plan = append(plan, models.RestockLineItem{
			Item:     it.Item,
			Qty:      it.Qty,
			UnitCost: it.UnitCost,
		})
	}

	// 2. Walk the plan through the reconciler
	rec := &reconciler.Reconciler{
		Client:  h.Payments,
		Store:   h.Store,
		Limiter: h.Limiter,
	}

	outcomes, err := rec.Reconcile(c.Request.Context(), plan, req.Wallet)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start payment run: " + err.Error()})
		return
	}

	// 3. Drain the run, logging progress as each item settles
	var resp PayResponse
	for o := range outcomes {
		resp.RunID = o.RunID

		view := OutcomeView{Item: o.Item, Status: string(o.Status)}
		if !o.Amount.IsZero() {
			view.Amount = o.Amount.StringFixed(2)
		}
		if o.Err != nil {
			view.Error = o.Err.Error()
		}
		resp.Outcomes = append(resp.Outcomes, view)

		switch o.Status {
		case reconciler.StatusPaid:
			resp.Paid++
			log.Printf("✅ Paid %s TSD for %s (wallet: %s)", o.Amount.StringFixed(2), o.Item, req.Wallet)
		case reconciler.StatusLedgerWriteFailed:
			resp.Failed++
			log.Printf("❌ Payment for %s charged but NOT logged: %v", o.Item, o.Err)
		default:
			resp.Failed++
			log.Printf("❌ %s for %s: %v", o.Status, o.Item, o.Err)
		}
	}

	c.JSON(http.StatusOK, resp)
}
