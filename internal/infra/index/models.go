package index

import "time"

type ReceiptModel struct {
	Digest    string    `gorm:"primaryKey;size:64"`
	ReceiptID string    `gorm:"index;not null"`
	Kind      string    `gorm:"index;not null"`
	ActorID   string    `gorm:"index;not null"`
	State     string    `gorm:"not null"`
	TS        string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

type RootModel struct {
	Date      string    `gorm:"primaryKey;size:10"`
	Root      string    `gorm:"size:64;not null"`
	LeafCount int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
