package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"vaultmesh/internal/domain"
	"vaultmesh/internal/infra/crypto"
	"vaultmesh/internal/infra/merkle"
	"vaultmesh/internal/infra/schema"
)

// VerifyResult carries the decoded receipt and any non-fatal findings
// from a successful verification.
type VerifyResult struct {
	Receipt  *domain.Receipt  `json:"receipt"`
	Warnings []domain.Warning `json:"warnings,omitempty"`
}

// Verify checks a raw receipt document: schema guard, signature, and the
// policy gate. Strict mode additionally requires the stored leaf to
// recompute and the receipt's inclusion proof to fold to its day's
// sealed root.
func (l *Ledger) Verify(ctx context.Context, raw []byte, strict bool) (*VerifyResult, error) {
	if err := schema.ValidateReceipt(raw); err != nil {
		return nil, err
	}
	var r domain.Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchema, err)
	}

	result := &VerifyResult{Receipt: &r}
	warning, err := crypto.VerifySignature(&r)
	if err != nil {
		return nil, err
	}
	if warning != nil {
		result.Warnings = append(result.Warnings, *warning)
	}

	if strict {
		if r.Leaf == "" {
			return nil, fmt.Errorf("%w: strict verification requires a finalized receipt", domain.ErrSchema)
		}
		if err := crypto.VerifyLeaf(&r); err != nil {
			return nil, err
		}
		if err := l.verifyInclusion(&r); err != nil {
			return nil, err
		}
	}

	if err := l.checkPolicy(ctx, "verify", &r); err != nil {
		return nil, err
	}
	return result, nil
}

// verifyInclusion folds the receipt's proof path and compares the result
// against the sealed root for its day. An unanchored receipt fails
// strict verification outright.
func (l *Ledger) verifyInclusion(r *domain.Receipt) error {
	if r.Merkle == nil {
		return fmt.Errorf("%w: receipt is not anchored", domain.ErrSignatureInvalid)
	}
	sealed, err := l.Store.GetRoot(r.Merkle.Date)
	if err != nil {
		return fmt.Errorf("day %s is not sealed: %w", r.Merkle.Date, err)
	}
	if r.Merkle.Root != sealed.Root {
		return fmt.Errorf("%w: receipt root does not match sealed root for %s", domain.ErrSignatureInvalid, r.Merkle.Date)
	}
	ok, err := merkle.Verify(r.Leaf, r.Merkle.Path, sealed.Root)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: inclusion proof does not fold to sealed root", domain.ErrSignatureInvalid)
	}
	return nil
}

// VerifyBundle validates a receipt together with its provenance
// document: both schema guards, the receipt verification above, and the
// mutual digest binding.
func (l *Ledger) VerifyBundle(ctx context.Context, bundle domain.Bundle, strict bool) (*VerifyResult, error) {
	rawReceipt, err := json.Marshal(bundle.Receipt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchema, err)
	}
	rawProv, err := json.Marshal(bundle.Provenance)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchema, err)
	}
	if err := schema.ValidateProvenance(rawProv); err != nil {
		return nil, err
	}
	result, err := l.Verify(ctx, rawReceipt, strict)
	if err != nil {
		return nil, err
	}
	if err := ValidateBundle(result.Receipt, &bundle.Provenance); err != nil {
		return nil, err
	}
	return result, nil
}
