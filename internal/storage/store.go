package storage

import (
	"context"

	"github.com/AnjaniMalhotra/auto-restock-agent/internal/models"
)

// LedgerStore is the durable record of completed payments. Entries are
// append-only; nothing in this system ever rewrites or deletes one.
type LedgerStore interface {
	// Load returns every ledger entry to date, in write order.
	Load(ctx context.Context) ([]models.LedgerEntry, error)

	// Append durably writes one new entry.
	Append(ctx context.Context, entry models.LedgerEntry) error
}
