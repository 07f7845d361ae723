package usecase

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vaultmesh/internal/domain"
	"vaultmesh/internal/infra/canonical"
	"vaultmesh/internal/infra/cas"
	"vaultmesh/internal/infra/crypto"
	"vaultmesh/internal/infra/identity"
	"vaultmesh/internal/infra/policyopa"
)

var testClock = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

const testDate = "2026-08-31"

// testLedger builds a ledger over a throwaway store with a fixed clock,
// sequential IDs and a self-provisioned keypair, and pins the
// environment so emitted receipts do not pick up the host's CI context.
func testLedger(t *testing.T) *Ledger {
	t.Helper()
	for _, k := range []string{
		"GITHUB_ACTIONS", "GITLAB_CI", "CIRCLECI", "BUILDKITE",
		"JENKINS_URL", "AZURE_HTTP_USER_AGENT", "GIT_COMMIT", "GIT_REF",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("VM_TF_VERSION", "1.9.0")

	store, err := cas.Open(filepath.Join(t.TempDir(), "ledger"))
	if err != nil {
		t.Fatal(err)
	}
	l := NewLedger(store)
	l.Identity = identity.Options{KeyPath: filepath.Join(t.TempDir(), "actor.key")}
	l.Clock = func() time.Time { return testClock }
	n := 0
	l.NewID = func() string {
		n++
		return fmt.Sprintf("receipt-%04d", n)
	}
	return l
}

func emitSigned(t *testing.T, l *Ledger, kind string, mode domain.ProvenanceMode) (*domain.Receipt, *domain.Provenance) {
	t.Helper()
	r, p, err := l.Emit(EmitRequest{
		Kind:          kind,
		SubjectKind:   "plan",
		SubjectDigest: "subject-" + kind,
		Mode:          mode,
		Artifact:      "app.tar.gz",
		ArtifactHash:  "hash-" + kind,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Finalize(r); err != nil {
		t.Fatal(err)
	}
	if err := l.Sign(r, p); err != nil {
		t.Fatal(err)
	}
	return r, p
}

func TestLifecycleEmitFinalizeSign(t *testing.T) {
	l := testLedger(t)

	r, p, err := l.Emit(EmitRequest{
		Kind:          "terraform_apply",
		SubjectKind:   "plan",
		SubjectDigest: "abc123",
		Mode:          domain.ModeRefer,
	})
	if err != nil {
		t.Fatal(err)
	}
	if r.State() != domain.StateDraft {
		t.Fatalf("state after emit = %v, want draft", r.State())
	}
	if r.ID != "receipt-0001" || r.TS != "2026-08-31T12:00:00Z" {
		t.Fatalf("id/ts = %q / %q", r.ID, r.TS)
	}
	if r.Actor.ID == "" {
		t.Fatal("actor not resolved")
	}
	if r.ProvenanceRef == nil || r.ProvenanceRef.Digest == "" {
		t.Fatal("refer mode must set a provenance reference")
	}
	if p == nil {
		t.Fatal("refer mode must return the provenance document")
	}

	if err := l.Finalize(r); err != nil {
		t.Fatal(err)
	}
	if r.State() != domain.StateFinalized || r.Leaf == "" {
		t.Fatalf("state after finalize = %v, leaf %q", r.State(), r.Leaf)
	}
	leaf := r.Leaf

	// Finalize is idempotent on an already-finalized receipt.
	if err := l.Finalize(r); err != nil {
		t.Fatal(err)
	}
	if r.Leaf != leaf {
		t.Fatal("re-finalize changed the leaf")
	}

	if err := l.Sign(r, p); err != nil {
		t.Fatal(err)
	}
	if r.State() != domain.StateSigned {
		t.Fatalf("state after sign = %v, want signed", r.State())
	}
	if r.Sign.Alg != "ed25519" {
		t.Fatalf("sign alg = %q", r.Sign.Alg)
	}

	// A signed receipt cannot go back to finalize.
	if err := l.Finalize(r); err == nil {
		t.Fatal("expected re-finalize of signed receipt to fail")
	}
}

func TestEmitRequiresKindAndSubject(t *testing.T) {
	l := testLedger(t)
	if _, _, err := l.Emit(EmitRequest{Kind: "x"}); !errors.Is(err, domain.ErrSchema) {
		t.Fatalf("missing subject digest: err = %v, want ErrSchema", err)
	}
	if _, _, err := l.Emit(EmitRequest{SubjectDigest: "d"}); !errors.Is(err, domain.ErrSchema) {
		t.Fatalf("missing kind: err = %v, want ErrSchema", err)
	}
}

func TestEmbedModeInlinesProvenance(t *testing.T) {
	l := testLedger(t)
	r, p, err := l.Emit(EmitRequest{
		Kind:          "build",
		SubjectDigest: "abc",
		Mode:          domain.ModeEmbed,
	})
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		t.Fatal("embed mode must not return an external document")
	}
	if r.Provenance == nil || r.ProvenanceRef != nil {
		t.Fatal("embed mode must inline provenance on the receipt")
	}
}

func TestSealAnchorVerifyStrict(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	r, _ := emitSigned(t, l, "terraform_apply", domain.ModeRefer)
	if _, err := l.PutReceipt(ctx, r); err != nil {
		t.Fatal(err)
	}

	daily, err := l.Seal(ctx, testDate)
	if err != nil {
		t.Fatal(err)
	}
	if daily.LeafCount != 1 || daily.Root == "" {
		t.Fatalf("daily = %+v", daily)
	}

	if err := l.Anchor(r); err != nil {
		t.Fatal(err)
	}
	if r.Merkle == nil || r.Merkle.Root != daily.Root || r.Merkle.Date != testDate {
		t.Fatalf("merkle = %+v", r.Merkle)
	}

	raw, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	result, err := l.Verify(ctx, raw, true)
	if err != nil {
		t.Fatalf("strict verify: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
}

func TestSealIdempotentAndDeduplicates(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	r, _ := emitSigned(t, l, "terraform_apply", domain.ModeRefer)

	// Store the receipt at two lifecycle points: both copies share one
	// leaf and must count once.
	signedCopy := *r
	signedCopy.Merkle = &domain.Merkle{Date: testDate, Root: "placeholder"}
	if _, err := l.PutReceipt(ctx, r); err != nil {
		t.Fatal(err)
	}
	if _, err := l.PutReceipt(ctx, &signedCopy); err != nil {
		t.Fatal(err)
	}

	first, err := l.Seal(ctx, testDate)
	if err != nil {
		t.Fatal(err)
	}
	if first.LeafCount != 1 {
		t.Fatalf("leaf count = %d, want 1 (lifecycle copies share a leaf)", first.LeafCount)
	}

	second, err := l.Seal(ctx, testDate)
	if err != nil {
		t.Fatal(err)
	}
	if second.Root != first.Root || second.LeafCount != first.LeafCount {
		t.Fatalf("reseal drifted: %+v vs %+v", second, first)
	}
}

func TestSealEmptyDay(t *testing.T) {
	l := testLedger(t)
	daily, err := l.Seal(context.Background(), "2001-01-01")
	if err != nil {
		t.Fatal(err)
	}
	if daily.LeafCount != 0 || daily.Root == "" {
		t.Fatalf("empty day seal = %+v", daily)
	}
}

func TestAnchorRequiresSealedDay(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	r, _ := emitSigned(t, l, "terraform_apply", domain.ModeRefer)
	if _, err := l.PutReceipt(ctx, r); err != nil {
		t.Fatal(err)
	}
	if err := l.Anchor(r); err == nil {
		t.Fatal("expected anchor to fail before sealing")
	}
}

func TestAnchorDetectsStaleRoot(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	r1, _ := emitSigned(t, l, "first", domain.ModeRefer)
	if _, err := l.PutReceipt(ctx, r1); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Seal(ctx, testDate); err != nil {
		t.Fatal(err)
	}

	// A receipt lands after the day was sealed.
	r2, _ := emitSigned(t, l, "second", domain.ModeRefer)
	if _, err := l.PutReceipt(ctx, r2); err != nil {
		t.Fatal(err)
	}
	if err := l.Anchor(r1); err == nil {
		t.Fatal("expected anchor to refuse a stale sealed root")
	}

	// Resealing restores anchorability.
	if _, err := l.Seal(ctx, testDate); err != nil {
		t.Fatal(err)
	}
	if err := l.Anchor(r1); err != nil {
		t.Fatalf("anchor after reseal: %v", err)
	}
}

func TestVerifyStrictRejectsUnanchored(t *testing.T) {
	l := testLedger(t)
	r, _ := emitSigned(t, l, "terraform_apply", domain.ModeRefer)
	raw, _ := json.Marshal(r)
	_, err := l.Verify(context.Background(), raw, true)
	if !errors.Is(err, domain.ErrSignatureInvalid) {
		t.Fatalf("err = %v, want ErrSignatureInvalid for unanchored receipt", err)
	}
}

func TestBraidBundleBinding(t *testing.T) {
	l := testLedger(t)
	r, p := emitSigned(t, l, "release", domain.ModeBraid)

	if r.ProvenanceRef == nil || r.ProvenanceRef.Mode != domain.ModeBraid {
		t.Fatal("braid mode must be recorded on the reference")
	}
	if p.ReceiptDigest == "" {
		t.Fatal("sign must close the braid back-reference")
	}
	if err := ValidateBundle(r, p); err != nil {
		t.Fatalf("braided bundle: %v", err)
	}

	// An open braid, never closed at sign time, is inconsistent.
	open := *p
	open.ReceiptDigest = ""
	if err := ValidateBundle(r, &open); !errors.Is(err, domain.ErrBundleInconsistent) {
		t.Fatalf("err = %v, want ErrBundleInconsistent for open braid", err)
	}

	// Tampering with the provenance body breaks the forward binding.
	tampered := *p
	tampered.ArtifactHash = "evil"
	if err := ValidateBundle(r, &tampered); !errors.Is(err, domain.ErrBundleInconsistent) {
		t.Fatalf("err = %v, want ErrBundleInconsistent", err)
	}

	// Tampering with the receipt breaks the back-reference.
	mutated := *r
	mutated.ID = "receipt-9999"
	if err := ValidateBundle(&mutated, p); !errors.Is(err, domain.ErrBundleInconsistent) {
		t.Fatalf("err = %v, want ErrBundleInconsistent", err)
	}
}

func TestReferBundleBinding(t *testing.T) {
	l := testLedger(t)
	r, p := emitSigned(t, l, "release", domain.ModeRefer)

	if p.ReceiptDigest != "" {
		t.Fatal("refer mode must not set a back-reference")
	}
	if r.ProvenanceRef == nil || r.ProvenanceRef.Mode != "" {
		t.Fatal("refer mode must leave the reference unmarked")
	}
	if err := ValidateBundle(r, p); err != nil {
		t.Fatalf("refer bundle: %v", err)
	}

	tampered := *p
	tampered.Artifact = "other.tar.gz"
	if err := ValidateBundle(r, &tampered); !errors.Is(err, domain.ErrBundleInconsistent) {
		t.Fatalf("err = %v, want ErrBundleInconsistent", err)
	}
}

func TestIngestHappyPath(t *testing.T) {
	sender := testLedger(t)
	receiver := testLedger(t)
	ctx := context.Background()

	r, p := emitSigned(t, sender, "terraform_apply", domain.ModeBraid)
	raw, err := json.Marshal(domain.Bundle{Receipt: *r, Provenance: *p})
	if err != nil {
		t.Fatal(err)
	}

	result, err := receiver.Ingest(ctx, raw)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != "verified" {
		t.Fatalf("status = %q", result.Status)
	}
	if result.ReceiptDigest == "" {
		t.Fatal("ingest must report the stored receipt digest")
	}
	if result.MerkleRoot == "" {
		t.Fatal("ingest of a finalized receipt must seal its day inline")
	}

	stored, err := receiver.GetReceipt(result.ReceiptDigest)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ID != r.ID {
		t.Fatalf("stored id = %q, want %q", stored.ID, r.ID)
	}

	sealed, err := receiver.Store.GetRoot(testDate)
	if err != nil {
		t.Fatal(err)
	}
	if sealed.Root != result.MerkleRoot {
		t.Fatal("inline seal root does not match persisted daily root")
	}
}

func TestIngestRejections(t *testing.T) {
	sender := testLedger(t)
	receiver := testLedger(t)
	ctx := context.Background()

	r, p := emitSigned(t, sender, "terraform_apply", domain.ModeBraid)

	t.Run("tampered receipt", func(t *testing.T) {
		bad := *r
		bad.Kind = "terraform_destroy"
		raw, _ := json.Marshal(domain.Bundle{Receipt: bad, Provenance: *p})
		_, err := receiver.Ingest(ctx, raw)
		if !errors.Is(err, domain.ErrSignatureInvalid) {
			t.Fatalf("err = %v, want ErrSignatureInvalid", err)
		}
	})

	t.Run("inconsistent bundle", func(t *testing.T) {
		bad := *p
		bad.ArtifactHash = "evil"
		raw, _ := json.Marshal(domain.Bundle{Receipt: *r, Provenance: bad})
		_, err := receiver.Ingest(ctx, raw)
		if !errors.Is(err, domain.ErrBundleInconsistent) {
			t.Fatalf("err = %v, want ErrBundleInconsistent", err)
		}
	})

	t.Run("structurally invalid", func(t *testing.T) {
		bad := *r
		bad.Actor.ID = ""
		raw, _ := json.Marshal(domain.Bundle{Receipt: bad, Provenance: *p})
		_, err := receiver.Ingest(ctx, raw)
		if !errors.Is(err, domain.ErrSchema) {
			t.Fatalf("err = %v, want ErrSchema", err)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := receiver.Ingest(ctx, []byte("not json"))
		if !errors.Is(err, domain.ErrSchema) {
			t.Fatalf("err = %v, want ErrSchema", err)
		}
	})
}

func TestIngestLegacyReceiptLogsWarning(t *testing.T) {
	receiver := testLedger(t)
	ctx := context.Background()

	seed := make([]byte, ed25519.SeedSize)
	seed[0] = 7
	priv := ed25519.NewKeyFromSeed(seed)

	p := &domain.Provenance{
		Artifact:     "app.tar.gz",
		ArtifactHash: "hash-legacy",
		Actor:        domain.Actor{ID: "did:key:z6MkLegacy"},
		TS:           domain.TSInfo{Built: "2026-08-31T12:00:00Z"},
	}
	refBytes, err := canonical.ProvenanceBytes(p, false)
	if err != nil {
		t.Fatal(err)
	}

	// A v0.1 receipt: no version marker, leaf computed after signing so
	// it covers the sign object.
	r := &domain.Receipt{
		ID:            "legacy-1",
		TS:            "2026-08-31T12:00:00Z",
		Kind:          "artifact",
		Actor:         domain.Actor{ID: "did:key:z6MkLegacy"},
		Env:           map[string]string{},
		Subject:       domain.Subject{Kind: "artifact", Digest: "abc"},
		ProvenanceRef: &domain.ProvenanceRef{Digest: canonical.Digest(refBytes)},
		Leaf:          strings.Repeat("0", 64),
	}
	if err := crypto.Sign(r, priv); err != nil {
		t.Fatal(err)
	}
	leaf, err := canonical.LeafHex(r, canonical.RulesV01)
	if err != nil {
		t.Fatal(err)
	}
	r.Leaf = leaf

	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	raw, err := json.Marshal(domain.Bundle{Receipt: *r, Provenance: *p})
	if err != nil {
		t.Fatal(err)
	}
	result, err := receiver.Ingest(ctx, raw)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != "verified" {
		t.Fatalf("status = %q", result.Status)
	}
	if !strings.Contains(logs.String(), domain.WarnLegacyCanonicalization) {
		t.Fatalf("legacy warning not logged on ingest; got %q", logs.String())
	}
}

func TestPolicyGateOnIngest(t *testing.T) {
	sender := testLedger(t)
	receiver := testLedger(t)
	ctx := context.Background()

	policyPath := filepath.Join(t.TempDir(), "policy.rego")
	policy := "package vaultmesh.policy\n\ndeny[msg] {\n\tinput.receipt.kind == \"terraform_destroy\"\n\tmsg := \"destroy receipts are not accepted here\"\n}\n"
	if err := os.WriteFile(policyPath, []byte(policy), 0o644); err != nil {
		t.Fatal(err)
	}
	engine, err := policyopa.NewEngineFromBundlePath(ctx, policyPath)
	if err != nil {
		t.Fatal(err)
	}
	receiver.Policy = engine

	allowed, pa := emitSigned(t, sender, "terraform_apply", domain.ModeBraid)
	rawAllowed, _ := json.Marshal(domain.Bundle{Receipt: *allowed, Provenance: *pa})
	if _, err := receiver.Ingest(ctx, rawAllowed); err != nil {
		t.Fatalf("allowed kind rejected: %v", err)
	}

	denied, pd := emitSigned(t, sender, "terraform_destroy", domain.ModeBraid)
	rawDenied, _ := json.Marshal(domain.Bundle{Receipt: *denied, Provenance: *pd})
	if _, err := receiver.Ingest(ctx, rawDenied); !errors.Is(err, domain.ErrPolicyDenied) {
		t.Fatalf("err = %v, want ErrPolicyDenied", err)
	}
}

func TestVerifyBundle(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	r, p := emitSigned(t, l, "release", domain.ModeBraid)
	if _, err := l.VerifyBundle(ctx, domain.Bundle{Receipt: *r, Provenance: *p}, false); err != nil {
		t.Fatal(err)
	}

	tampered := *p
	tampered.Artifact = "other"
	_, err := l.VerifyBundle(ctx, domain.Bundle{Receipt: *r, Provenance: tampered}, false)
	if !errors.Is(err, domain.ErrBundleInconsistent) {
		t.Fatalf("err = %v, want ErrBundleInconsistent", err)
	}
}
