package gormstore

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/AnjaniMalhotra/auto-restock-agent/internal/models"
	"github.com/AnjaniMalhotra/auto-restock-agent/internal/storage"
)

// ledgerRecord is the database shape of a models.LedgerEntry. Rows are only
// ever inserted; there is no update or delete path.
type ledgerRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Item      string `gorm:"size:255;index"`
	Qty       int
	UnitCost  decimal.Decimal `gorm:"type:decimal(14,4)"`
	Total     decimal.Decimal `gorm:"type:decimal(14,4)"`
	Wallet    string          `gorm:"size:255"`
	CreatedAt time.Time
}

func (ledgerRecord) TableName() string { return "ledger_entries" }

// Store keeps the payment ledger in MySQL, for installs that outgrow the
// flat CSV file.
type Store struct {
	db *gorm.DB
}

// Connect opens the database and syncs the schema. MySQL in a container can
// lag behind the app at startup, so the dial is retried a few times.
func Connect(dsn string) (*Store, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < 5; i++ {
		db, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
		if err == nil {
			break
		}
		log.Printf("Failed to connect to database. Retrying in 2 seconds... (%d/5)", i+1)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	if err := db.AutoMigrate(&ledgerRecord{}); err != nil {
		return nil, fmt.Errorf("migrate ledger schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Load(ctx context.Context) ([]models.LedgerEntry, error) {
	var records []ledgerRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	entries := make([]models.LedgerEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, models.LedgerEntry{
			Item:     r.Item,
			Qty:      r.Qty,
			UnitCost: r.UnitCost,
			Total:    r.Total,
			Wallet:   r.Wallet,
		})
	}
	return entries, nil
}

func (s *Store) Append(ctx context.Context, entry models.LedgerEntry) error {
	record := ledgerRecord{
		Item:     entry.Item,
		Qty:      entry.Qty,
		UnitCost: entry.UnitCost,
		Total:    entry.Total,
		Wallet:   entry.Wallet,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

var _ storage.LedgerStore = (*Store)(nil)
