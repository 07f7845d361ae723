package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
)

func testLeaves(n int) []string {
	leaves := make([]string, n)
	for i := range leaves {
		sum := sha256.Sum256([]byte(fmt.Sprintf("leaf-%d", i)))
		leaves[i] = hex.EncodeToString(sum[:])
	}
	return leaves
}

func TestEmptyRoot(t *testing.T) {
	root, err := Root(nil)
	if err != nil {
		t.Fatalf("root of empty set: %v", err)
	}
	if root != EmptyRoot {
		t.Fatalf("empty set root = %s, want sentinel %s", root, EmptyRoot)
	}
	sum := sha256.Sum256(nil)
	if EmptyRoot != hex.EncodeToString(sum[:]) {
		t.Fatal("empty root sentinel is not sha256 of zero bytes")
	}
}

func TestSingleLeafRoot(t *testing.T) {
	leaves := testLeaves(1)
	root, err := Root(leaves)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if root != leaves[0] {
		t.Fatalf("single-leaf root = %s, want the leaf itself", root)
	}
	path, err := Prove(leaves, leaves[0])
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	if len(path) != 0 {
		t.Fatalf("single leaf proof has %d steps, want 0", len(path))
	}
	ok, err := Verify(leaves[0], path, root)
	if err != nil || !ok {
		t.Fatalf("verify single leaf: ok=%v err=%v", ok, err)
	}
}

func TestProveVerifyAllSizes(t *testing.T) {
	for n := 1; n <= 9; n++ {
		leaves := testLeaves(n)
		root, err := Root(leaves)
		if err != nil {
			t.Fatalf("n=%d root: %v", n, err)
		}
		for _, leaf := range leaves {
			path, err := Prove(leaves, leaf)
			if err != nil {
				t.Fatalf("n=%d prove %s: %v", n, leaf, err)
			}
			ok, err := Verify(leaf, path, root)
			if err != nil {
				t.Fatalf("n=%d verify: %v", n, err)
			}
			if !ok {
				t.Fatalf("n=%d proof for %s does not fold to root", n, leaf)
			}
		}
	}
}

func TestVerifyRejectsMutations(t *testing.T) {
	leaves := testLeaves(5)
	root, err := Root(leaves)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	path, err := Prove(leaves, leaves[2])
	if err != nil {
		t.Fatalf("prove: %v", err)
	}

	otherLeaf := testLeaves(6)[5]
	if ok, _ := Verify(otherLeaf, path, root); ok {
		t.Fatal("proof verified for a different leaf")
	}

	mutated := append([]string(nil), leaves...)
	mutated[0] = otherLeaf
	mutatedRoot, err := Root(mutated)
	if err != nil {
		t.Fatalf("mutated root: %v", err)
	}
	if ok, _ := Verify(leaves[2], path, mutatedRoot); ok {
		t.Fatal("proof verified against a root over different leaves")
	}

	path[0].Right = !path[0].Right
	if ok, _ := Verify(leaves[2], path, root); ok {
		t.Fatal("proof verified with flipped direction flag")
	}
}

func TestProveUnknownLeaf(t *testing.T) {
	leaves := testLeaves(4)
	missing := testLeaves(5)[4]
	if _, err := Prove(leaves, missing); !errors.Is(err, ErrLeafNotFound) {
		t.Fatalf("prove unknown leaf err = %v, want ErrLeafNotFound", err)
	}
}

func TestOddLastNodeDuplicated(t *testing.T) {
	leaves := testLeaves(3)
	// A 3-leaf tree pairs the last leaf with itself.
	manual := func() string {
		raw := make([][]byte, 3)
		for i, l := range leaves {
			b, _ := hex.DecodeString(l)
			raw[i] = b
		}
		left := nodeHash(raw[0], raw[1])
		right := nodeHash(raw[2], raw[2])
		return hex.EncodeToString(nodeHash(left, right))
	}()
	root, err := Root(leaves)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if root != manual {
		t.Fatalf("3-leaf root = %s, want %s", root, manual)
	}
}

func TestInvalidLeafRejected(t *testing.T) {
	cases := []string{"", "zz", "abcd", testLeaves(1)[0] + "00"}
	for _, leaf := range cases {
		if _, err := Root([]string{leaf}); !errors.Is(err, ErrInvalidLeaf) {
			t.Fatalf("root(%q) err = %v, want ErrInvalidLeaf", leaf, err)
		}
	}
}
