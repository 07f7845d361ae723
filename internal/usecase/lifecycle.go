package usecase

import (
	"errors"
	"fmt"
	"time"

	"vaultmesh/internal/domain"
	"vaultmesh/internal/infra/canonical"
	"vaultmesh/internal/infra/crypto"
	"vaultmesh/internal/infra/envmeta"
	"vaultmesh/internal/infra/identity"
)

// EmitRequest describes the event a new receipt records.
type EmitRequest struct {
	Kind          string
	SubjectKind   string
	SubjectDigest string
	SubjectMeta   map[string]any

	Mode         domain.ProvenanceMode
	Artifact     string
	ArtifactHash string
	BuildRepo    string
	BuildCommit  string
	BuildRef     string
}

// Emit builds a draft receipt and, depending on mode, its provenance
// document. Actor identity is resolved through the configured precedence
// chain; CI metadata is captured from the environment at emit time.
// Braid binding happens later, at Sign, when the final digest exists.
func (l *Ledger) Emit(req EmitRequest) (*domain.Receipt, *domain.Provenance, error) {
	if req.Kind == "" || req.SubjectDigest == "" {
		return nil, nil, fmt.Errorf("%w: kind and subject digest are required", domain.ErrSchema)
	}

	actorDID, err := identity.Resolve(l.Identity)
	if err != nil {
		return nil, nil, err
	}
	meta := envmeta.Collect()
	ts := l.now().UTC().Format(time.RFC3339)

	r := &domain.Receipt{
		V:     domain.ReceiptVersion,
		ID:    l.newID(),
		TS:    ts,
		Kind:  req.Kind,
		Actor: domain.Actor{ID: actorDID},
		Env:   meta.Entries,
		Subject: domain.Subject{
			Kind:   req.SubjectKind,
			Digest: req.SubjectDigest,
			Meta:   req.SubjectMeta,
		},
	}
	if r.Subject.Kind == "" {
		r.Subject.Kind = "artifact"
	}

	mode := req.Mode
	if mode == "" {
		mode = domain.ModeRefer
	}
	p := &domain.Provenance{
		Artifact:     req.Artifact,
		ArtifactHash: req.ArtifactHash,
		Actor:        domain.Actor{ID: actorDID},
		Build: domain.Build{
			Repo:   firstNonEmpty(req.BuildRepo, meta.Entries["github_repository"], meta.Entries["gitlab_project"]),
			Commit: firstNonEmpty(req.BuildCommit, meta.Entries["git_commit"]),
			Ref:    firstNonEmpty(req.BuildRef, meta.Entries["git_ref"]),
		},
		CI: domain.CIInfo{
			Name:   meta.CI,
			URL:    meta.Entries["ci_url"],
			Runner: meta.Runner,
		},
		TS: domain.TSInfo{Built: ts},
	}
	if p.Artifact == "" {
		p.Artifact = req.SubjectDigest
	}
	if p.ArtifactHash == "" {
		p.ArtifactHash = req.SubjectDigest
	}

	switch mode {
	case domain.ModeEmbed:
		r.Provenance = p
		return r, nil, nil
	case domain.ModeRefer:
		b, err := canonical.ProvenanceBytes(p, false)
		if err != nil {
			return nil, nil, err
		}
		r.ProvenanceRef = &domain.ProvenanceRef{Digest: canonical.Digest(b)}
		return r, p, nil
	case domain.ModeBraid:
		// The reference digest is computed over the provenance without
		// its back-reference, so it stays valid after the braid closes.
		b, err := canonical.ProvenanceBytes(p, true)
		if err != nil {
			return nil, nil, err
		}
		r.ProvenanceRef = &domain.ProvenanceRef{Digest: canonical.Digest(b), Mode: domain.ModeBraid}
		return r, p, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown provenance mode %q", domain.ErrSchema, mode)
	}
}

// Finalize freezes a draft by computing its leaf hash. Finalizing an
// already-finalized receipt is a no-op; a signed receipt cannot be
// re-finalized.
func (l *Ledger) Finalize(r *domain.Receipt) error {
	switch r.State() {
	case domain.StateSigned:
		return errors.New("receipt already signed; cannot re-finalize")
	case domain.StateFinalized:
		return nil
	}
	leaf, err := canonical.LeafHex(r, canonical.RulesFor(r))
	if err != nil {
		return err
	}
	r.Leaf = leaf
	return nil
}

// Sign attaches an ed25519 signature using the resolved actor keypair.
// The receipt must be finalized first. When the receipt carries a braid
// reference and prov is non-nil, the provenance back-reference is closed
// with the final receipt digest; refer-mode references stay one-way.
func (l *Ledger) Sign(r *domain.Receipt, prov *domain.Provenance) error {
	priv, did, err := identity.Keypair(l.Identity)
	if err != nil {
		return err
	}
	if r.Actor.ID == "" {
		r.Actor.ID = did
	}
	if err := crypto.Sign(r, priv); err != nil {
		return err
	}
	if prov != nil && r.ProvenanceRef != nil && r.ProvenanceRef.Mode == domain.ModeBraid {
		digest, err := receiptDigest(r)
		if err != nil {
			return err
		}
		prov.ReceiptDigest = digest
	}
	return nil
}

// ValidateBundle checks the mutual binding of a receipt/provenance pair.
// Refer mode binds one way (receipt -> provenance); braid mode also
// requires the provenance to carry the receipt's final digest.
func ValidateBundle(r *domain.Receipt, p *domain.Provenance) error {
	if r.ProvenanceRef == nil {
		if r.Provenance != nil {
			return nil // embed mode carries no external document
		}
		return fmt.Errorf("%w: receipt has no provenance binding", domain.ErrBundleInconsistent)
	}
	braided := p.ReceiptDigest != ""
	if r.ProvenanceRef.Mode == domain.ModeBraid && !braided {
		return fmt.Errorf("%w: braided receipt but provenance carries no back-reference", domain.ErrBundleInconsistent)
	}
	b, err := canonical.ProvenanceBytes(p, braided)
	if err != nil {
		return err
	}
	if canonical.Digest(b) != r.ProvenanceRef.Digest {
		return fmt.Errorf("%w: provenance digest does not match receipt reference", domain.ErrBundleInconsistent)
	}
	if braided {
		digest, err := receiptDigest(r)
		if err != nil {
			return err
		}
		if p.ReceiptDigest != digest {
			return fmt.Errorf("%w: provenance back-reference does not match receipt digest", domain.ErrBundleInconsistent)
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
