package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"unicode/utf8"

	"vaultmesh/internal/infra/canonical"
)

// HashArtifact computes the subject digest for an artifact, normalizing
// content first so logically identical artifacts hash the same: JSON is
// canonicalized, text gets CRLF folded to LF, anything else is hashed
// as raw bytes.
func HashArtifact(mediaType string, input []byte) (string, error) {
	normalized, err := normalizeArtifact(mediaType, input)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:]), nil
}

func normalizeArtifact(mediaType string, input []byte) ([]byte, error) {
	switch baseMediaType(mediaType) {
	case "application/json":
		return canonical.JSON(input)
	case "text/plain":
		if !utf8.Valid(input) {
			return nil, errors.New("invalid UTF-8")
		}
		return bytes.ReplaceAll(input, []byte("\r\n"), []byte("\n")), nil
	default:
		return input, nil
	}
}

func baseMediaType(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}
