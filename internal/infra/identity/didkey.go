package identity

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
)

// multicodec prefix for an ed25519 public key. Changing this (or the
// base58btc alphabet) breaks identity continuity for every receipt ever
// issued, so it is fixed here and covered by tests.
var multicodecEd25519 = []byte{0xed, 0x01}

// DIDKey derives the did:key form of an ed25519 public key:
// "did:key:z" + base58btc(0xed 0x01 || pub).
func DIDKey(pub ed25519.PublicKey) string {
	data := make([]byte, 0, len(multicodecEd25519)+len(pub))
	data = append(data, multicodecEd25519...)
	data = append(data, pub...)
	return "did:key:z" + base58.Encode(data)
}
