package domain

import "errors"

// Error taxonomy. Everything is a local, typed outcome; nothing here is
// swallowed or converted to a panic. Only ErrNetwork is retryable.
var (
	// ErrSchema covers malformed or missing fields, locally detected.
	ErrSchema = errors.New("schema violation")
	// ErrSignatureInvalid is a cryptographic mismatch, fatal for the
	// operation.
	ErrSignatureInvalid = errors.New("signature invalid")
	// ErrNotFound is the normal negative result for a CAS lookup.
	ErrNotFound = errors.New("not found")
	// ErrPolicyDenied means the policy gate returned a non-empty deny set.
	ErrPolicyDenied = errors.New("policy denied")
	// ErrIdentityResolution means every identity tier was exhausted, or an
	// explicit override was syntactically invalid.
	ErrIdentityResolution = errors.New("identity resolution failed")
	// ErrNetwork is a transient transport failure; callers may retry with
	// backoff.
	ErrNetwork = errors.New("network error")
	// ErrBundleInconsistent means a braided receipt/provenance pair do not
	// reference each other's digests consistently.
	ErrBundleInconsistent = errors.New("bundle inconsistent")
)

// Warning is a non-fatal finding attached to an otherwise successful
// verification, e.g. a legacy canonicalization shape.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WarnLegacyCanonicalization is reported when a v0.1 receipt (leaf hash
// covering sign.sig) verifies under the compatibility rules.
const WarnLegacyCanonicalization = "legacy_canonicalization"
