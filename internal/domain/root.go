package domain

// DailyRoot is the persisted outcome of sealing one day-bucket of
// receipts. Immutable once written; resealing an unchanged leaf set must
// reproduce it exactly.
type DailyRoot struct {
	Date      string `json:"date"`
	LeafCount int    `json:"leaf_count"`
	Root      string `json:"root"`
}

// Bundle is a receipt plus its provenance document, the unit the sync
// protocol pushes between peers.
type Bundle struct {
	Receipt    Receipt    `json:"receipt"`
	Provenance Provenance `json:"provenance"`
}

// PushResult is a peer's answer to an ingested bundle. MerkleRoot is empty
// when the peer does not seal inline on ingest.
type PushResult struct {
	Status        string `json:"status"`
	ReceiptDigest string `json:"receipt_digest"`
	MerkleRoot    string `json:"merkle_root,omitempty"`
}

// Entry is one classified document in the ledger directory.
type Entry struct {
	Kind   string `json:"kind"` // "receipt" | "provenance" | "unknown"
	Digest string `json:"digest"`
}
