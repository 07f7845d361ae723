package policyopa

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"vaultmesh/internal/infra/canonical"
)

type bundleFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

type bundleHashPayload struct {
	Files []bundleFile `json:"files"`
}

// BundleHash fingerprints the policy bundle (a .rego file or a directory
// of them) so evaluations can report which rules decided. The digest is
// over a canonical listing of path+content hashes, stable across walk
// order.
func BundleHash(bundlePath string) (string, error) {
	info, err := os.Stat(bundlePath)
	if err != nil {
		return "", fmt.Errorf("reading policy bundle: %w", err)
	}

	var files []bundleFile
	if !info.IsDir() {
		data, err := os.ReadFile(bundlePath)
		if err != nil {
			return "", fmt.Errorf("reading policy bundle: %w", err)
		}
		files = append(files, bundleFile{Path: filepath.Base(bundlePath), SHA256: sha256Hex(data)})
	} else {
		err := fs.WalkDir(os.DirFS(bundlePath), ".", func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || !strings.HasSuffix(path, ".rego") {
				return nil
			}
			data, err := fs.ReadFile(os.DirFS(bundlePath), path)
			if err != nil {
				return err
			}
			files = append(files, bundleFile{Path: filepath.ToSlash(path), SHA256: sha256Hex(data)})
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("walking policy bundle: %w", err)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	payload, err := canonical.Any(bundleHashPayload{Files: files})
	if err != nil {
		return "", err
	}
	return sha256Hex(payload), nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
