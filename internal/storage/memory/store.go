package memory

import (
	"context"
	"sync"

	"github.com/AnjaniMalhotra/auto-restock-agent/internal/models"
	"github.com/AnjaniMalhotra/auto-restock-agent/internal/storage"
)

// Store is an in-memory ledger, used in tests and for running the app
// without touching disk.
type Store struct {
	mu      sync.Mutex
	entries []models.LedgerEntry
}

func New() *Store {
	return &Store{}
}

// Seed pre-populates the ledger, for tests that need payment history.
func Seed(entries ...models.LedgerEntry) *Store {
	return &Store{entries: entries}
}

func (s *Store) Load(ctx context.Context) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]models.LedgerEntry, len(s.entries))
	copy(copied, s.entries)
	return copied, nil
}

func (s *Store) Append(ctx context.Context, entry models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	return nil
}

var _ storage.LedgerStore = (*Store)(nil)
