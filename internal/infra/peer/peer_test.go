package peer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vaultmesh/internal/domain"
)

func testBundle() domain.Bundle {
	return domain.Bundle{
		Receipt: domain.Receipt{
			ID:    "r-1",
			Actor: domain.Actor{ID: "did:key:z6MkA"},
		},
	}
}

func TestPushSuccess(t *testing.T) {
	var gotPath, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(domain.PushResult{
			Status:        "verified",
			ReceiptDigest: "abc",
			MerkleRoot:    "root",
		})
	}))
	defer srv.Close()

	result, err := New(time.Second).Push(context.Background(), srv.URL+"/", testBundle())
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/v1/verify" {
		t.Fatalf("path = %q, want /v1/verify", gotPath)
	}
	if gotContentType != "application/json" {
		t.Fatalf("content type = %q", gotContentType)
	}
	if result.Status != "verified" || result.ReceiptDigest != "abc" || result.MerkleRoot != "root" {
		t.Fatalf("result = %+v", result)
	}
}

func TestPushStatusMapping(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"schema rejection", http.StatusBadRequest, `{"error":"receipt: missing actor"}`, domain.ErrSchema},
		{"policy denial", http.StatusForbidden, `{"error":"actor not in allow list"}`, domain.ErrPolicyDenied},
		{"verification failure", http.StatusUnprocessableEntity, `{"error":"signature invalid"}`, domain.ErrSignatureInvalid},
		{"server error", http.StatusInternalServerError, `boom`, domain.ErrNetwork},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := New(time.Second).Push(context.Background(), srv.URL, testBundle())
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestPushUnreachablePeer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := New(time.Second).Push(context.Background(), srv.URL, testBundle())
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
}

func TestVerifyRemote(t *testing.T) {
	stored := []byte(`{"id":"r-1"}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/ledger/abc" {
			w.Write(stored)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	}))
	defer srv.Close()

	client := New(time.Second)

	var validated []byte
	err := client.VerifyRemote(context.Background(), srv.URL, "abc", func(raw []byte) error {
		validated = raw
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(validated) != string(stored) {
		t.Fatalf("validate saw %q, want %q", validated, stored)
	}

	err = client.VerifyRemote(context.Background(), srv.URL, "missing", nil)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	wantErr := errors.New("local verification failed")
	err = client.VerifyRemote(context.Background(), srv.URL, "abc", func([]byte) error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want validate error surfaced", err)
	}
}

func TestLoadGuardAllowList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peers.toml")
	body := "allow_ids = [\"did:key:z6MkA\", \"did:web:id.example.com:users:alice\"]\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	guard := LoadGuard(path)
	if !guard.Allowed("did:key:z6MkA") {
		t.Fatal("listed actor denied")
	}
	if guard.Allowed("did:key:z6MkB") {
		t.Fatal("unlisted actor allowed")
	}
	if guard.String() != "allow-list(2)" {
		t.Fatalf("String() = %q", guard.String())
	}
}

func TestLoadGuardOpenByDefault(t *testing.T) {
	cases := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing file", func(t *testing.T) string {
			return filepath.Join(t.TempDir(), "absent.toml")
		}},
		{"empty allow list", func(t *testing.T) string {
			path := filepath.Join(t.TempDir(), "peers.toml")
			os.WriteFile(path, []byte("allow_ids = []\n"), 0o644)
			return path
		}},
		{"malformed toml", func(t *testing.T) string {
			path := filepath.Join(t.TempDir(), "peers.toml")
			os.WriteFile(path, []byte("allow_ids = [unterminated\n"), 0o644)
			return path
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			guard := LoadGuard(tc.path(t))
			if !guard.Allowed("anyone") {
				t.Fatal("guard should be open")
			}
			if guard.String() != "open" {
				t.Fatalf("String() = %q", guard.String())
			}
		})
	}
}

func TestNilGuardAllows(t *testing.T) {
	var guard *Guard
	if !guard.Allowed("anyone") {
		t.Fatal("nil guard must allow")
	}
}
