package usecase

import (
	"context"
	"encoding/json"
	"sort"

	"vaultmesh/internal/domain"
	"vaultmesh/internal/infra/merkle"
	"vaultmesh/internal/infra/schema"
)

// Seal builds the Merkle root for one day-bucket and persists it.
// Leaves are the leaf hashes of finalized receipts timestamped on that
// date, deduplicated and sorted, so resealing an unchanged set is
// idempotent and a finalize/sign pair counts once.
func (l *Ledger) Seal(ctx context.Context, date string) (domain.DailyRoot, error) {
	leaves, err := l.dayLeaves(date)
	if err != nil {
		return domain.DailyRoot{}, err
	}
	root, err := merkle.Root(leaves)
	if err != nil {
		return domain.DailyRoot{}, err
	}
	daily := domain.DailyRoot{
		Date:      date,
		LeafCount: len(leaves),
		Root:      root,
	}
	if err := l.Store.PutRoot(daily); err != nil {
		return domain.DailyRoot{}, err
	}
	if l.Index.Enabled() {
		if err := l.Index.RecordRoot(ctx, daily); err != nil {
			return domain.DailyRoot{}, err
		}
	}
	return daily, nil
}

// dayLeaves collects the sorted, deduplicated leaf hashes of receipts
// whose timestamp falls on the given date. Drafts carry no leaf and are
// skipped.
func (l *Ledger) dayLeaves(date string) ([]string, error) {
	entries, err := l.Store.List(schema.Classify)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var leaves []string
	for _, entry := range entries {
		if entry.Kind != "receipt" {
			continue
		}
		raw, err := l.Store.Get(entry.Digest)
		if err != nil {
			return nil, err
		}
		var r domain.Receipt
		if err := json.Unmarshal(raw, &r); err != nil {
			continue
		}
		if r.Leaf == "" || len(r.TS) < len(date) || r.TS[:len(date)] != date {
			continue
		}
		if _, dup := seen[r.Leaf]; dup {
			continue
		}
		seen[r.Leaf] = struct{}{}
		leaves = append(leaves, r.Leaf)
	}
	sort.Strings(leaves)
	return leaves, nil
}
