package cas

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"vaultmesh/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	digest, err := s.Put([]byte(`{"b":1,"a":2}`))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := s.Get(digest)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `{"a":2,"b":1}` {
		t.Fatalf("stored bytes = %s, want canonical form", data)
	}
	if !s.Has(digest) {
		t.Fatal("has reported false for stored digest")
	}
}

func TestPutIdempotent(t *testing.T) {
	s := openTestStore(t)
	first, err := s.Put([]byte(`{"a":1,"b":2}`))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	// Different layout, same document.
	second, err := s.Put([]byte("{ \"b\": 2,\n \"a\": 1 }"))
	if err != nil {
		t.Fatalf("put again: %v", err)
	}
	if first != second {
		t.Fatalf("digests differ across layouts: %s vs %s", first, second)
	}
	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("store holds %d files, want 1", len(entries))
	}
}

func TestPutRejectsMalformed(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Put([]byte(`{"a":`)); !errors.Is(err, domain.ErrSchema) {
		t.Fatalf("put malformed err = %v, want ErrSchema", err)
	}
}

func TestGetNotFound(t *testing.T) {
	s := openTestStore(t)
	missing := "0000000000000000000000000000000000000000000000000000000000000000"
	if _, err := s.Get(missing); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get missing err = %v, want ErrNotFound", err)
	}
	for _, bad := range []string{"", "xyz", "ABCDEF", "../../etc/passwd"} {
		if _, err := s.Get(bad); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("get %q err = %v, want ErrNotFound", bad, err)
		}
	}
}

func TestListClassifies(t *testing.T) {
	s := openTestStore(t)
	d1, err := s.Put([]byte(`{"kind":"a"}`))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	d2, err := s.Put([]byte(`{"kind":"b"}`))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	// Root files and temp leftovers must not show up as entries.
	if err := s.PutRoot(domain.DailyRoot{Date: "2026-08-31", LeafCount: 0, Root: "r"}); err != nil {
		t.Fatalf("put root: %v", err)
	}

	entries, err := s.List(func(data []byte) string { return "unknown" })
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("list returned %d entries, want 2", len(entries))
	}
	if entries[0].Digest > entries[1].Digest {
		t.Fatal("entries not sorted by digest")
	}
	seen := map[string]bool{entries[0].Digest: true, entries[1].Digest: true}
	if !seen[d1] || !seen[d2] {
		t.Fatal("list missed a stored digest")
	}
}

func TestRootsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetRoot("2026-08-31"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get missing root err = %v, want ErrNotFound", err)
	}
	root := domain.DailyRoot{
		Date:      "2026-08-31",
		LeafCount: 3,
		Root:      "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
	}
	if err := s.PutRoot(root); err != nil {
		t.Fatalf("put root: %v", err)
	}
	got, err := s.GetRoot("2026-08-31")
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	if got != root {
		t.Fatalf("root = %+v, want %+v", got, root)
	}

	// Resealing replaces the persisted root.
	root.LeafCount = 4
	if err := s.PutRoot(root); err != nil {
		t.Fatalf("reseal: %v", err)
	}
	got, err = s.GetRoot("2026-08-31")
	if err != nil {
		t.Fatalf("get root after reseal: %v", err)
	}
	if got.LeafCount != 4 {
		t.Fatalf("leaf count = %d after reseal, want 4", got.LeafCount)
	}

	if _, err := os.Stat(filepath.Join(s.Dir(), "root-2026-08-31.json")); err != nil {
		t.Fatalf("root file missing: %v", err)
	}
}
