package domain

// ProvenanceMode selects how a provenance document binds to its receipt.
type ProvenanceMode string

const (
	// ModeRefer stores a path+digest reference on the receipt. Default.
	ModeRefer ProvenanceMode = "refer"
	// ModeEmbed inlines the provenance body into the receipt.
	ModeEmbed ProvenanceMode = "embed"
	// ModeBraid is a mutual binding: the receipt references the
	// provenance digest and the provenance stores the receipt's final
	// digest. Either side mismatching fails bundle validation.
	ModeBraid ProvenanceMode = "braid"
)

// Provenance is a SLSA-lean supply-chain statement binding an artifact to
// the commit, ref, CI run and actor that produced it.
type Provenance struct {
	Artifact      string `json:"artifact"`
	ArtifactHash  string `json:"artifact_hash"`
	Actor         Actor  `json:"actor"`
	Build         Build  `json:"build"`
	CI            CIInfo `json:"ci"`
	TS            TSInfo `json:"ts"`
	ReceiptDigest string `json:"receipt_digest,omitempty"`
}

type Build struct {
	Repo   string `json:"repo,omitempty"`
	Commit string `json:"commit,omitempty"`
	Ref    string `json:"ref,omitempty"`
}

type CIInfo struct {
	Name   string `json:"name,omitempty"`
	URL    string `json:"url,omitempty"`
	Runner string `json:"runner,omitempty"`
}

type TSInfo struct {
	Built string `json:"built"`
}
