package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"vaultmesh/internal/domain"
)

// Rules selects the versioned canonicalization strategy for leaf hashing.
type Rules int

const (
	// RulesV02 excludes leaf, merkle and the signature block from the
	// hashed bytes, so the leaf is stable across the finalize -> sign
	// transition.
	RulesV02 Rules = iota
	// RulesV01 is the legacy shape: leaf and merkle are excluded but the
	// signature block (sign.sig included) stays inside the hashed bytes.
	RulesV01
)

// RulesFor picks the strategy a receipt declares. Absence of the version
// marker is what identifies a legacy document.
func RulesFor(r *domain.Receipt) Rules {
	if r.Legacy() {
		return RulesV01
	}
	return RulesV02
}

// Digest is the 256-bit content hash over canonical bytes, lowercase hex.
func Digest(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// DocumentDigest canonicalizes raw JSON and digests it. Every CAS write
// goes through here; hashing non-canonical bytes would break
// deduplication.
func DocumentDigest(raw []byte) (string, error) {
	c, err := JSON(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSchema, err)
	}
	return Digest(c), nil
}

// LeafBytes returns the canonical pre-leaf bytes of a receipt under the
// given rules.
func LeafBytes(r *domain.Receipt, rules Rules) ([]byte, error) {
	m, err := toMap(r)
	if err != nil {
		return nil, err
	}
	delete(m, "leaf")
	delete(m, "merkle")
	if rules == RulesV02 {
		delete(m, "sign")
	}
	return Any(m)
}

// LeafHex computes the receipt's leaf digest under the given rules.
func LeafHex(r *domain.Receipt, rules Rules) (string, error) {
	b, err := LeafBytes(r, rules)
	if err != nil {
		return "", err
	}
	return Digest(b), nil
}

// SignBytes returns the canonical bytes a signature covers: the document
// minus leaf, merkle and the signature block itself. Identical for both
// rule versions; v0.1 differs only in what the leaf hash covers.
func SignBytes(r *domain.Receipt) ([]byte, error) {
	m, err := toMap(r)
	if err != nil {
		return nil, err
	}
	delete(m, "leaf")
	delete(m, "merkle")
	delete(m, "sign")
	return Any(m)
}

// ProvenanceBytes canonicalizes a provenance document. In braid mode the
// receipt-side reference digest is computed with the back-reference
// stripped, otherwise the two digests could never converge.
func ProvenanceBytes(p *domain.Provenance, stripReceiptDigest bool) ([]byte, error) {
	m, err := toMap(p)
	if err != nil {
		return nil, err
	}
	if stripReceiptDigest {
		delete(m, "receipt_digest")
	}
	return Any(m)
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchema, err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchema, err)
	}
	return m, nil
}
