package usecase

import (
	"fmt"

	"vaultmesh/internal/domain"
	"vaultmesh/internal/infra/merkle"
)

// Anchor attaches an inclusion proof for the receipt's leaf under its
// day's sealed root. The day must already be sealed and the sealed root
// must still match the current leaf set; a drifted root means receipts
// were added after sealing and the day needs resealing first.
func (l *Ledger) Anchor(r *domain.Receipt) error {
	if r.Leaf == "" {
		return fmt.Errorf("%w: receipt is not finalized", domain.ErrSchema)
	}
	if len(r.TS) < 10 {
		return fmt.Errorf("%w: receipt timestamp %q", domain.ErrSchema, r.TS)
	}
	date := r.TS[:10]

	sealed, err := l.Store.GetRoot(date)
	if err != nil {
		return fmt.Errorf("day %s is not sealed: %w", date, err)
	}
	leaves, err := l.dayLeaves(date)
	if err != nil {
		return err
	}
	root, err := merkle.Root(leaves)
	if err != nil {
		return err
	}
	if root != sealed.Root {
		return fmt.Errorf("sealed root for %s is stale; reseal before anchoring", date)
	}
	path, err := merkle.Prove(leaves, r.Leaf)
	if err != nil {
		return err
	}
	r.Merkle = &domain.Merkle{
		Date: date,
		Path: path,
		Root: sealed.Root,
	}
	return nil
}
