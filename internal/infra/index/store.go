package index

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Store is an optional Postgres mirror of the ledger directory. The
// filesystem stays the source of truth; the index exists so operators
// can query receipts and roots with SQL.
type Store struct {
	DB *gorm.DB
}

func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		log.Printf("POSTGRES_DSN not set; ledger index disabled.")
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := gdb.AutoMigrate(&ReceiptModel{}, &RootModel{}); err != nil {
		return nil, fmt.Errorf("migrate ledger index: %w", err)
	}

	return &Store{DB: gdb}, nil
}

// Enabled reports whether the index is backed by a live database.
func (s *Store) Enabled() bool {
	return s != nil && s.DB != nil
}
