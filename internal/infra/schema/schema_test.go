package schema

import (
	"errors"
	"testing"

	"vaultmesh/internal/domain"
)

const validReceipt = `{
  "v": "0.2",
  "id": "r-1",
  "actor": {"id": "did:key:z6MkExample"},
  "env": {"ci": "github_actions"},
  "ts": "2026-08-31T12:00:00Z",
  "kind": "terraform_apply",
  "subject": {"kind": "plan", "digest": "abc123"}
}`

const validProvenance = `{
  "artifact": "app.tar.gz",
  "artifact_hash": "deadbeef",
  "actor": {"id": "did:key:z6MkExample"},
  "build": {"repo": "acme/deploy"},
  "ci": {"ci": "github_actions"},
  "ts": {"built": "2026-08-31T12:00:00Z"}
}`

func TestValidateReceipt(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", validReceipt, false},
		{"extra fields allowed", `{"actor":{"id":"a"},"env":{},"ts":"2026-08-31T12:00:00Z","subject":{"kind":"plan","digest":"d"},"custom":"x"}`, false},
		{"missing actor", `{"env":{},"ts":"2026-08-31T12:00:00Z","subject":{"kind":"plan","digest":"d"}}`, true},
		{"empty actor id", `{"actor":{"id":""},"env":{},"ts":"2026-08-31T12:00:00Z","subject":{"kind":"plan","digest":"d"}}`, true},
		{"bad timestamp", `{"actor":{"id":"a"},"env":{},"ts":"yesterday","subject":{"kind":"plan","digest":"d"}}`, true},
		{"subject missing digest", `{"actor":{"id":"a"},"env":{},"ts":"2026-08-31T12:00:00Z","subject":{"kind":"plan"}}`, true},
		{"not JSON", `{"actor":`, true},
		{"not an object", `[1,2,3]`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateReceipt([]byte(tc.raw))
			if tc.wantErr {
				if !errors.Is(err, domain.ErrSchema) {
					t.Fatalf("err = %v, want ErrSchema", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateProvenance(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", validProvenance, false},
		{"braided back-reference", `{"artifact":"a","artifact_hash":"h","actor":{"id":"x"},"build":{},"ci":{},"ts":{"built":"2026-08-31T12:00:00Z"},"receipt_digest":"abc"}`, false},
		{"missing artifact_hash", `{"artifact":"a","actor":{"id":"x"},"build":{},"ci":{},"ts":{"built":"2026-08-31T12:00:00Z"}}`, true},
		{"ts as string", `{"artifact":"a","artifact_hash":"h","actor":{"id":"x"},"build":{},"ci":{},"ts":"2026-08-31T12:00:00Z"}`, true},
		{"ts missing built", `{"artifact":"a","artifact_hash":"h","actor":{"id":"x"},"build":{},"ci":{},"ts":{}}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateProvenance([]byte(tc.raw))
			if tc.wantErr {
				if !errors.Is(err, domain.ErrSchema) {
					t.Fatalf("err = %v, want ErrSchema", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"receipt", validReceipt, "receipt"},
		{"provenance", validProvenance, "provenance"},
		{"unknown object", `{"hello":"world"}`, "unknown"},
		{"malformed", `not json`, "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify([]byte(tc.raw)); got != tc.want {
				t.Fatalf("Classify = %q, want %q", got, tc.want)
			}
		})
	}
}
