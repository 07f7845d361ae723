package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vaultmesh/internal/domain"
	"vaultmesh/internal/infra/canonical"
	"vaultmesh/internal/infra/cas"
	"vaultmesh/internal/infra/identity"
	"vaultmesh/internal/infra/index"
	"vaultmesh/internal/infra/policyopa"

	"github.com/google/uuid"
)

// Ledger wires the receipt lifecycle, sealing and verification around a
// content-addressed store. Index and Policy are optional; a nil engine
// allows everything and a disabled index is skipped.
type Ledger struct {
	Store    *cas.Store
	Index    *index.Store
	Policy   *policyopa.Engine
	Identity identity.Options
	Clock    func() time.Time
	NewID    func() string
}

func NewLedger(store *cas.Store) *Ledger {
	return &Ledger{
		Store: store,
		Clock: time.Now,
		NewID: uuid.NewString,
	}
}

func (l *Ledger) now() time.Time {
	if l.Clock == nil {
		return time.Now()
	}
	return l.Clock()
}

func (l *Ledger) newID() string {
	if l.NewID == nil {
		return uuid.NewString()
	}
	return l.NewID()
}

// PutReceipt stores a receipt document in the CAS and mirrors it into
// the index when one is configured.
func (l *Ledger) PutReceipt(ctx context.Context, r *domain.Receipt) (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSchema, err)
	}
	digest, err := l.Store.Put(raw)
	if err != nil {
		return "", err
	}
	if l.Index.Enabled() {
		if err := l.Index.RecordReceipt(ctx, digest, *r); err != nil {
			return "", fmt.Errorf("index receipt %s: %w", digest, err)
		}
	}
	return digest, nil
}

// PutProvenance stores a provenance document in the CAS.
func (l *Ledger) PutProvenance(_ context.Context, p *domain.Provenance) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSchema, err)
	}
	return l.Store.Put(raw)
}

// GetReceipt loads and decodes a receipt by CAS digest.
func (l *Ledger) GetReceipt(digest string) (*domain.Receipt, error) {
	raw, err := l.Store.Get(digest)
	if err != nil {
		return nil, err
	}
	var r domain.Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: receipt %s: %v", domain.ErrSchema, digest, err)
	}
	return &r, nil
}

// checkPolicy consults the gate, if configured, for the given action.
func (l *Ledger) checkPolicy(ctx context.Context, action string, r *domain.Receipt) error {
	if l.Policy == nil {
		return nil
	}
	return l.Policy.Check(ctx, domain.PolicyInput{
		Action: action,
		Env:    r.Env,
		Receipt: domain.PolicyReceipt{
			ID:      r.ID,
			Kind:    r.Kind,
			ActorID: r.Actor.ID,
			Leaf:    r.Leaf,
		},
	})
}

// receiptDigest is the content digest of the full receipt document as it
// would be stored.
func receiptDigest(r *domain.Receipt) (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSchema, err)
	}
	return canonical.DocumentDigest(raw)
}
