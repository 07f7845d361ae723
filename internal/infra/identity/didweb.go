package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// DIDWeb derives a did:web identifier from a hosting domain and an OIDC
// token. The token is a hint, not an assertion: only the subject claim is
// read and no signature or trust verification is performed. The domain is
// used verbatim (dots are not rewritten); it must host the DID document.
func DIDWeb(domain, token string) (string, error) {
	if domain == "" || token == "" {
		return "", errors.New("did:web requires both a domain and a token")
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("parsing oidc token: %w", err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", errors.New("oidc token carries no subject claim")
	}
	return composeDIDWeb(domain, "users", encodeSub(strings.TrimSpace(sub))), nil
}

func composeDIDWeb(domain string, segments ...string) string {
	if len(segments) == 0 {
		return "did:web:" + domain
	}
	return "did:web:" + domain + ":" + strings.Join(segments, ":")
}

// encodeSub percent-encodes everything outside alnum and - . _ so
// subjects containing path or DID delimiters stay one segment. The set
// is narrower than RFC 3986 unreserved (`~` is encoded too) and must
// stay fixed: widening it would re-derive different did:web identifiers
// for already-issued receipts.
func encodeSub(sub string) string {
	var b strings.Builder
	for i := 0; i < len(sub); i++ {
		c := sub[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '-' || c == '.' || c == '_':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperHex[c>>4])
			b.WriteByte(upperHex[c&0x0f])
		}
	}
	return b.String()
}

const upperHex = "0123456789ABCDEF"
