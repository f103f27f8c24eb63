package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/AnjaniMalhotra/auto-restock-agent/internal/models"
	"github.com/AnjaniMalhotra/auto-restock-agent/internal/parsers"
	"github.com/AnjaniMalhotra/auto-restock-agent/internal/planner"
)

// PlanLine is one row of the reviewable restock plan as the UI sees it,
// with the derived total already computed for display.
type PlanLine struct {
	Item     string          `json:"item"`
	Qty      int             `json:"qty"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Total    decimal.Decimal `json:"total"`
}

// UploadResponse is the payload for a successfully parsed inventory file.
type UploadResponse struct {
	Inventory []models.InventoryRow `json:"inventory"`
	Plan      []PlanLine            `json:"plan"`
	TotalCost decimal.Decimal       `json:"total_cost"`
}

// --- POST: /api/inventory/upload ---
// Takes the uploaded spreadsheet (.csv or .xlsx), validates it and returns
// the low-stock restock plan with default quantities. Validation problems
// are reported immediately; nothing external is called from here.
func (h *Handler) UploadInventory(c *gin.Context) {
	// 1. Get the file from the request
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer file.Close()

	// 2. Parse and validate
	rows, err := parsers.ParseFile(fileHeader.Filename, file)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, parsers.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	// 3. Derive the restock plan (strictly-below-threshold rows only)
	plan := planner.DerivePlan(rows, planner.DefaultBuffer)

	lines := make([]PlanLine, 0, len(plan))
	for _, li := range plan {
		lines = append(lines, PlanLine{
			Item:     li.Item,
			Qty:      li.Qty,
			UnitCost: li.UnitCost,
			Total:    li.Total(),
		})
	}

	c.JSON(http.StatusOK, UploadResponse{
		Inventory: rows,
		Plan:      lines,
		TotalCost: planner.Summarize(plan),
	})
}
