package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"vaultmesh/internal/domain"
	"vaultmesh/internal/infra/crypto"
	"vaultmesh/internal/infra/peer"
	"vaultmesh/internal/infra/schema"
)

// Push stores the bundle locally, then submits it to the peer's verify
// endpoint. The local write happens first so a network failure never
// loses the receipt; re-pushing after a retry is a CAS no-op.
func (l *Ledger) Push(ctx context.Context, client *peer.Client, peerURL string, bundle domain.Bundle) (*domain.PushResult, error) {
	if _, err := l.PutReceipt(ctx, &bundle.Receipt); err != nil {
		return nil, err
	}
	if _, err := l.PutProvenance(ctx, &bundle.Provenance); err != nil {
		return nil, err
	}
	return client.Push(ctx, peerURL, bundle)
}

// VerifyRemote fetches a receipt from a peer by digest and validates the
// returned document locally. The peer's claim of holding the receipt is
// only accepted if the bytes verify here.
func (l *Ledger) VerifyRemote(ctx context.Context, client *peer.Client, peerURL, digest string) (*VerifyResult, error) {
	var result *VerifyResult
	err := client.VerifyRemote(ctx, peerURL, digest, func(raw []byte) error {
		r, verr := l.Verify(ctx, raw, false)
		if verr != nil {
			return verr
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Ingest is the receiving side of the sync protocol: full validation of
// an incoming bundle, CAS storage of both documents, and an inline seal
// of the receipt's day so the caller gets a root covering the new leaf.
func (l *Ledger) Ingest(ctx context.Context, raw []byte) (*domain.PushResult, error) {
	var bundle domain.Bundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchema, err)
	}
	rawReceipt, err := json.Marshal(bundle.Receipt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchema, err)
	}
	if err := schema.ValidateReceipt(rawReceipt); err != nil {
		return nil, err
	}
	rawProv, err := json.Marshal(bundle.Provenance)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchema, err)
	}
	if err := schema.ValidateProvenance(rawProv); err != nil {
		return nil, err
	}

	r := &bundle.Receipt
	warning, err := crypto.VerifySignature(r)
	if err != nil {
		return nil, err
	}
	if warning != nil {
		log.Printf("ingest receipt %s: %s: %s", r.ID, warning.Code, warning.Message)
	}
	if r.Leaf != "" {
		if err := crypto.VerifyLeaf(r); err != nil {
			return nil, err
		}
	}
	if err := ValidateBundle(r, &bundle.Provenance); err != nil {
		return nil, err
	}
	if err := l.checkPolicy(ctx, "ingest", r); err != nil {
		return nil, err
	}

	digest, err := l.PutReceipt(ctx, r)
	if err != nil {
		return nil, err
	}
	if _, err := l.PutProvenance(ctx, &bundle.Provenance); err != nil {
		return nil, err
	}

	result := &domain.PushResult{
		Status:        "verified",
		ReceiptDigest: digest,
	}
	if len(r.TS) >= 10 && r.Leaf != "" {
		daily, err := l.Seal(ctx, r.TS[:10])
		if err != nil {
			return nil, err
		}
		result.MerkleRoot = daily.Root
	}
	return result, nil
}
