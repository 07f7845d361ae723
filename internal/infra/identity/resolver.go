package identity

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"vaultmesh/internal/domain"
)

var didSyntax = regexp.MustCompile(`^did:[a-z0-9]+:.+$`)

// Options are the identity-relevant knobs, resolved once per invocation.
type Options struct {
	// OverrideDID wins unconditionally when set, but must itself be a
	// syntactically valid DID or resolution fails outright.
	OverrideDID string
	// WebDomain + OIDCToken derive a did:web identifier (tier 2).
	WebDomain string
	OIDCToken string
	// KeyPath locates the local actor keyfile (tier 3, self-provisioning).
	KeyPath string
}

// Resolve walks the precedence chain and returns exactly one actor DID.
// Each tier reports availability rather than throwing; the first
// available one decides.
func Resolve(opts Options) (string, error) {
	if did := strings.TrimSpace(opts.OverrideDID); did != "" {
		if !didSyntax.MatchString(did) {
			return "", fmt.Errorf("%w: override %q is not a valid DID", domain.ErrIdentityResolution, did)
		}
		return did, nil
	}

	if opts.WebDomain != "" && opts.OIDCToken != "" {
		did, err := DIDWeb(opts.WebDomain, opts.OIDCToken)
		if err == nil {
			return did, nil
		}
		// Tier 2 unavailable; fall through to the local key.
	}

	path, err := keyPath(opts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrIdentityResolution, err)
	}
	_, did, err := EnsureKeypair(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrIdentityResolution, err)
	}
	return did, nil
}

// Keypair loads (provisioning if needed) the local signing keypair. The
// override and did:web tiers carry no private key, so signing always uses
// the local keyfile.
func Keypair(opts Options) (ed25519.PrivateKey, string, error) {
	path, err := keyPath(opts)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrIdentityResolution, err)
	}
	priv, did, err := EnsureKeypair(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrIdentityResolution, err)
	}
	return priv, did, nil
}

func keyPath(opts Options) (string, error) {
	if p := strings.TrimSpace(opts.KeyPath); p != "" {
		return expandHome(p)
	}
	return DefaultKeyPath()
}

func expandHome(p string) (string, error) {
	if p == "~" {
		return DefaultKeyPath()
	}
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("no home directory: %w", err)
		}
		return filepath.Join(home, p[2:]), nil
	}
	return p, nil
}
