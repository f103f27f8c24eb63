package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/AnjaniMalhotra/auto-restock-agent/internal/reconciler"
	"github.com/AnjaniMalhotra/auto-restock-agent/internal/storage"
)

// Handler carries the collaborators every route needs. Built once in main
// and shared; there is no package-level state here.
type Handler struct {
	Store    storage.LedgerStore
	Payments reconciler.PaymentClient
	Limiter  *rate.Limiter
	Wallets  []string
}

// --- GET: /api/wallets ---
// The funding sources the user can pick from. One wallet is chosen per
// session and applied to every payment in that session's run.
func (h *Handler) GetWallets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"wallets": h.Wallets})
}

// --- GET: /api/history ---
// Past payment history straight from the ledger, oldest first.
func (h *Handler) GetHistory(c *gin.Context) {
	entries, err := h.Store.Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payment history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) walletKnown(name string) bool {
	for _, w := range h.Wallets {
		if w == name {
			return true
		}
	}
	return false
}
