package cas

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"vaultmesh/internal/domain"
	"vaultmesh/internal/infra/canonical"
)

var digestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Store is an immutable digest-keyed document store over a flat
// directory: one canonical JSON file per digest, write-once, no update or
// delete. The write-once property is enforced here at the storage
// boundary, not left to convention.
type Store struct {
	dir string
}

func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("ledger directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Put canonicalizes the document, derives its digest and publishes it
// under that digest. Writing the same canonical bytes twice is a no-op.
// Publication is all-or-nothing: bytes land in a temp file first and
// become visible only through the final rename, so two writers racing on
// the same digest can never expose a partial file.
func (s *Store) Put(raw []byte) (string, error) {
	c, err := canonical.JSON(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSchema, err)
	}
	digest := canonical.Digest(c)
	path := s.path(digest)
	if _, err := os.Stat(path); err == nil {
		return digest, nil
	}

	tmp, err := os.CreateTemp(s.dir, "."+digest+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("staging cas write: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(c); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing cas entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing cas entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("publishing cas entry: %w", err)
	}
	return digest, nil
}

// Get returns the stored canonical bytes for a digest, or ErrNotFound.
func (s *Store) Get(digest string) ([]byte, error) {
	if !digestPattern.MatchString(digest) {
		return nil, fmt.Errorf("%w: %q is not a content digest", domain.ErrNotFound, digest)
	}
	data, err := os.ReadFile(s.path(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, digest)
		}
		return nil, fmt.Errorf("reading cas entry: %w", err)
	}
	return data, nil
}

// Has reports whether a digest is present without reading it.
func (s *Store) Has(digest string) bool {
	if !digestPattern.MatchString(digest) {
		return false
	}
	_, err := os.Stat(s.path(digest))
	return err == nil
}

// List walks the store and classifies each document with the supplied
// function ("receipt", "provenance" or "unknown"). Entries come back
// sorted by digest.
func (s *Store) List(classify func([]byte) string) ([]domain.Entry, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading ledger dir: %w", err)
	}
	out := make([]domain.Entry, 0, len(entries))
	for _, ent := range entries {
		name := ent.Name()
		digest := strings.TrimSuffix(name, ".json")
		if name == digest || !digestPattern.MatchString(digest) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading cas entry: %w", err)
		}
		out = append(out, domain.Entry{Kind: classify(data), Digest: digest})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Digest < out[j].Digest })
	return out, nil
}

func (s *Store) path(digest string) string {
	return filepath.Join(s.dir, digest+".json")
}
