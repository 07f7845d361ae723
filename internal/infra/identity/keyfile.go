package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// KeyFile is the on-disk actor key format: a base64 ed25519 seed plus the
// DID derived from it. Older installations stored the bare base64 seed
// with no JSON wrapper; those still load.
type KeyFile struct {
	Alg    string `json:"alg"`
	Secret string `json:"secret"`
	DID    string `json:"did,omitempty"`
}

// EnsureKeypair loads the actor keypair at path, provisioning one on
// first use. The containing directory is owner-only (0700) and the key
// file owner read/write (0600).
func EnsureKeypair(path string) (ed25519.PrivateKey, string, error) {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, "", fmt.Errorf("creating key dir %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return generateKeypair(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}
	kf, err := parseKeyFile(data)
	if err != nil {
		return nil, "", fmt.Errorf("parsing %s: %w", path, err)
	}

	seed, err := base64.StdEncoding.DecodeString(kf.Secret)
	if err != nil {
		return nil, "", fmt.Errorf("invalid actor key encoding: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, "", errors.New("invalid actor key seed length")
	}
	priv := ed25519.NewKeyFromSeed(seed)

	did := kf.DID
	if strings.TrimSpace(did) == "" {
		did = DIDKey(priv.Public().(ed25519.PublicKey))
	}
	return priv, did, nil
}

func generateKeypair(path string) (ed25519.PrivateKey, string, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, "", fmt.Errorf("generating actor key: %w", err)
	}
	did := DIDKey(priv.Public().(ed25519.PublicKey))
	kf := KeyFile{
		Alg:    "ed25519",
		Secret: base64.StdEncoding.EncodeToString(priv.Seed()),
		DID:    did,
	}
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return nil, "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, "", fmt.Errorf("writing %s: %w", path, err)
	}
	return priv, did, nil
}

func parseKeyFile(data []byte) (KeyFile, error) {
	var kf KeyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		// Legacy layout: the file is the bare base64 seed.
		kf = KeyFile{Alg: "ed25519", Secret: strings.TrimSpace(string(data))}
	}
	if !strings.EqualFold(kf.Alg, "ed25519") {
		return KeyFile{}, fmt.Errorf("unsupported actor key algorithm: %s", kf.Alg)
	}
	return kf, nil
}

// DefaultKeyPath is ~/.vaultmesh/actor.key unless overridden.
func DefaultKeyPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("no home directory: %w", err)
	}
	return filepath.Join(home, ".vaultmesh", "actor.key"), nil
}
