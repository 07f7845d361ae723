package index

import (
	"context"
	"errors"
	"time"

	"vaultmesh/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errIndexDisabled = errors.New("ledger index is disabled")

// RecordReceipt mirrors a stored receipt into the index. Re-recording
// the same digest is a no-op; content-addressed rows never change.
func (s *Store) RecordReceipt(ctx context.Context, digest string, r domain.Receipt) error {
	if !s.Enabled() {
		return nil
	}
	model := ReceiptModel{
		Digest:    digest,
		ReceiptID: r.ID,
		Kind:      r.Kind,
		ActorID:   r.Actor.ID,
		State:     r.State().String(),
		TS:        r.TS,
		CreatedAt: time.Now().UTC(),
	}
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model).Error
}

// RecordRoot mirrors a sealed daily root. Resealing a day replaces the
// row so the index tracks the latest root for the date.
func (s *Store) RecordRoot(ctx context.Context, root domain.DailyRoot) error {
	if !s.Enabled() {
		return nil
	}
	model := RootModel{
		Date:      root.Date,
		Root:      root.Root,
		LeafCount: root.LeafCount,
		CreatedAt: time.Now().UTC(),
	}
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"root", "leaf_count", "created_at"}),
		}).
		Create(&model).Error
}

// FindByActor lists receipt digests recorded for an actor, newest
// first.
func (s *Store) FindByActor(ctx context.Context, actorID string, limit int) ([]ReceiptModel, error) {
	if !s.Enabled() {
		return nil, errIndexDisabled
	}
	if limit <= 0 {
		limit = 100
	}
	var rows []ReceiptModel
	err := s.DB.WithContext(ctx).
		Where("actor_id = ?", actorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// GetRoot returns the indexed root for a date.
func (s *Store) GetRoot(ctx context.Context, date string) (*RootModel, error) {
	if !s.Enabled() {
		return nil, errIndexDisabled
	}
	var row RootModel
	err := s.DB.WithContext(ctx).Where("date = ?", date).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
