package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/AnjaniMalhotra/auto-restock-agent/internal/models"
	"github.com/AnjaniMalhotra/auto-restock-agent/internal/storage"
)

var header = []string{"item", "qty", "unit_cost", "total", "wallet"}

// Store keeps the payment ledger in a flat CSV file. The whole file is read
// into memory at open and rewritten in full on every append. The rewrite goes
// through a temp file and os.Rename so a crash mid-write can never truncate
// the ledger.
type Store struct {
	path string

	mu      sync.Mutex
	entries []models.LedgerEntry
}

// Open loads the ledger at path, creating an empty file with a header row
// if none exists yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.rewrite(nil); err != nil {
			return nil, fmt.Errorf("create ledger file: %w", err)
		}
		return s, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read ledger file: %w", err)
	}

	// First record is the header row.
	for i, rec := range records {
		if i == 0 {
			continue
		}
		entry, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("ledger line %d: %w", i+1, err)
		}
		s.entries = append(s.entries, entry)
	}

	return s, nil
}

// Load implements storage.LedgerStore.
func (s *Store) Load(ctx context.Context) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]models.LedgerEntry, len(s.entries))
	copy(copied, s.entries)
	return copied, nil
}

// Append implements storage.LedgerStore. The new entry is only kept in
// memory once the file on disk has been replaced successfully.
func (s *Store) Append(ctx context.Context, entry models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(append([]models.LedgerEntry{}, s.entries...), entry)
	if err := s.rewrite(next); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	s.entries = next
	return nil
}

func (s *Store) rewrite(entries []models.LedgerEntry) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".restock_log-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return err
	}
	for _, e := range entries {
		rec := []string{
			e.Item,
			strconv.Itoa(e.Qty),
			e.UnitCost.String(),
			e.Total.String(),
			e.Wallet,
		}
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), s.path)
}

func parseRecord(rec []string) (models.LedgerEntry, error) {
	if len(rec) < 5 {
		return models.LedgerEntry{}, fmt.Errorf("expected 5 columns, got %d", len(rec))
	}

	qty, err := strconv.Atoi(rec[1])
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("bad qty %q: %w", rec[1], err)
	}
	unitCost, err := decimal.NewFromString(rec[2])
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("bad unit_cost %q: %w", rec[2], err)
	}
	total, err := decimal.NewFromString(rec[3])
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("bad total %q: %w", rec[3], err)
	}

	return models.LedgerEntry{
		Item:     rec[0],
		Qty:      qty,
		UnitCost: unitCost,
		Total:    total,
		Wallet:   rec[4],
	}, nil
}

var _ storage.LedgerStore = (*Store)(nil)
