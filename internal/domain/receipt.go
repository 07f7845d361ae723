package domain

// ReceiptVersion marks the current canonicalization rules. Receipts
// without a version marker are treated as the legacy v0.1 shape, whose
// leaf hash still covered sign.sig.
const ReceiptVersion = "0.2"

// ReceiptState is derived from field presence, never stored.
type ReceiptState int

const (
	StateDraft ReceiptState = iota
	StateFinalized
	StateSigned
)

func (s ReceiptState) String() string {
	switch s {
	case StateDraft:
		return "draft"
	case StateFinalized:
		return "finalized"
	case StateSigned:
		return "signed"
	default:
		return "unknown"
	}
}

type Receipt struct {
	V             string            `json:"v,omitempty"`
	ID            string            `json:"id"`
	TS            string            `json:"ts"`
	Kind          string            `json:"kind"`
	Actor         Actor             `json:"actor"`
	Env           map[string]string `json:"env"`
	Subject       Subject           `json:"subject"`
	Provenance    *Provenance       `json:"provenance,omitempty"`
	ProvenanceRef *ProvenanceRef    `json:"provenance_ref,omitempty"`
	Leaf          string            `json:"leaf,omitempty"`
	Merkle        *Merkle           `json:"merkle,omitempty"`
	Sign          *Sign             `json:"sign,omitempty"`
}

type Actor struct {
	ID string `json:"id"`
}

type Subject struct {
	Kind   string         `json:"kind"`
	Digest string         `json:"digest"`
	Meta   map[string]any `json:"meta,omitempty"`
}

type Sign struct {
	Alg string `json:"alg"`
	Pub string `json:"pub"`
	Sig string `json:"sig"`
}

// ProvenanceRef links a receipt to an out-of-band provenance document.
// Mode is "braid" when the provenance carries a back-reference to the
// receipt; absent it means a one-way refer link.
type ProvenanceRef struct {
	Path   string         `json:"path,omitempty"`
	Digest string         `json:"digest"`
	Mode   ProvenanceMode `json:"mode,omitempty"`
}

// Merkle records the outcome of anchoring a receipt under a daily root.
type Merkle struct {
	Date string      `json:"date"`
	Path []ProofStep `json:"path"`
	Root string      `json:"root"`
}

// ProofStep is one level of an inclusion proof: the sibling digest and
// whether it sits to the right of the running hash.
type ProofStep struct {
	Sibling string `json:"sibling"`
	Right   bool   `json:"right"`
}

// State reports where in the Draft -> Finalized -> Signed lifecycle the
// receipt currently is.
func (r *Receipt) State() ReceiptState {
	switch {
	case r.Sign != nil && r.Sign.Sig != "":
		return StateSigned
	case r.Leaf != "":
		return StateFinalized
	default:
		return StateDraft
	}
}

// Legacy reports whether the receipt predates the v0.2 canonicalization
// rules.
func (r *Receipt) Legacy() bool {
	return r.V == ""
}
