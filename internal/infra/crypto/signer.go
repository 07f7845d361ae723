package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"vaultmesh/internal/domain"
	"vaultmesh/internal/infra/canonical"
)

// Sign attaches an ed25519 signature over the receipt's canonical
// pre-signature bytes, transitioning it Finalized -> Signed. The receipt
// is immutable thereafter.
func Sign(r *domain.Receipt, priv ed25519.PrivateKey) error {
	switch r.State() {
	case domain.StateDraft:
		return fmt.Errorf("%w: receipt must be finalized before signing", domain.ErrSchema)
	case domain.StateSigned:
		return fmt.Errorf("%w: receipt already signed", domain.ErrSchema)
	}
	payload, err := canonical.SignBytes(r)
	if err != nil {
		return err
	}
	sig := ed25519.Sign(priv, payload)
	r.Sign = &domain.Sign{
		Alg: "ed25519",
		Pub: base64.StdEncoding.EncodeToString(priv.Public().(ed25519.PublicKey)),
		Sig: base64.StdEncoding.EncodeToString(sig),
	}
	return nil
}

// VerifySignature recomputes the canonical pre-signature bytes and checks
// the embedded signature against the embedded public key. A legacy v0.1
// receipt verifies under the same signature rule (its difference is
// confined to leaf hashing) and yields a non-fatal warning.
func VerifySignature(r *domain.Receipt) (*domain.Warning, error) {
	if r.Sign == nil || r.Sign.Sig == "" {
		return nil, fmt.Errorf("%w: receipt is not signed", domain.ErrSignatureInvalid)
	}
	if r.Sign.Alg != "" && r.Sign.Alg != "ed25519" {
		return nil, fmt.Errorf("%w: unsupported signature algorithm %q", domain.ErrSignatureInvalid, r.Sign.Alg)
	}
	pub, err := ParseEd25519PublicKeyBase64(r.Sign.Pub)
	if err != nil {
		return nil, fmt.Errorf("%w: bad public key: %v", domain.ErrSignatureInvalid, err)
	}
	sig, err := base64.StdEncoding.DecodeString(r.Sign.Sig)
	if err != nil {
		return nil, fmt.Errorf("%w: bad signature encoding: %v", domain.ErrSignatureInvalid, err)
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: bad signature length", domain.ErrSignatureInvalid)
	}
	payload, err := canonical.SignBytes(r)
	if err != nil {
		return nil, err
	}
	if !ed25519.Verify(pub, payload, sig) {
		return nil, fmt.Errorf("%w: signature does not match canonical bytes", domain.ErrSignatureInvalid)
	}
	if r.Legacy() {
		return &domain.Warning{
			Code:    domain.WarnLegacyCanonicalization,
			Message: "receipt predates the v0.2 canonicalization rules; leaf hash covers sign.sig",
		}, nil
	}
	return nil, nil
}

// VerifyLeaf recomputes the leaf digest under the receipt's declared
// rules and compares it to the persisted field. Strict verification
// requires this to hold.
func VerifyLeaf(r *domain.Receipt) error {
	computed, err := canonical.LeafHex(r, canonical.RulesFor(r))
	if err != nil {
		return err
	}
	if computed != r.Leaf {
		return fmt.Errorf("%w: leaf mismatch: receipt tampered or not canonical", domain.ErrSignatureInvalid)
	}
	return nil
}
