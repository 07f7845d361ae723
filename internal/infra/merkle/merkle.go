package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"vaultmesh/internal/domain"
)

// HashSize is the digest width in bytes; leaves are lowercase hex.
const HashSize = 32

var (
	ErrInvalidLeaf  = errors.New("invalid leaf digest")
	ErrLeafNotFound = errors.New("leaf not found in set")
)

// EmptyRoot is the reserved sentinel for sealing an empty leaf set:
// SHA-256 over zero bytes. Never an error.
var EmptyRoot = func() string {
	sum := sha256.Sum256(nil)
	return hex.EncodeToString(sum[:])
}()

// nodeHash is the single pairwise fold both sealing and proof
// verification go through. Any drift between the two would make proofs
// silently fail, so there is exactly one copy.
func nodeHash(left, right []byte) []byte {
	h := sha256.New()
	h.Write([]byte{0x01})
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// Root builds the binary tree over the leaves in the order given,
// pairwise left-to-right, duplicating an unpaired last node at each
// level. Callers wanting order-independence sort the leaves first.
func Root(leaves []string) (string, error) {
	if len(leaves) == 0 {
		return EmptyRoot, nil
	}
	level, err := decodeLeaves(leaves)
	if err != nil {
		return "", err
	}
	for len(level) > 1 {
		level = nextLevel(level)
	}
	return hex.EncodeToString(level[0]), nil
}

// Prove walks the tree recording the sibling digest and its side at each
// level, from the leaf's position up to the root.
func Prove(leaves []string, leaf string) ([]domain.ProofStep, error) {
	index := -1
	for i, l := range leaves {
		if l == leaf {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, ErrLeafNotFound
	}
	level, err := decodeLeaves(leaves)
	if err != nil {
		return nil, err
	}

	var path []domain.ProofStep
	for len(level) > 1 {
		sibling := index ^ 1
		if sibling >= len(level) {
			sibling = index // unpaired last node pairs with itself
		}
		path = append(path, domain.ProofStep{
			Sibling: hex.EncodeToString(level[sibling]),
			Right:   sibling >= index,
		})
		level = nextLevel(level)
		index /= 2
	}
	return path, nil
}

// Fold re-derives a root from a leaf and its proof using the same
// pairwise hash as Root.
func Fold(leaf string, path []domain.ProofStep) (string, error) {
	cur, err := decodeDigest(leaf)
	if err != nil {
		return "", err
	}
	for _, step := range path {
		sib, err := decodeDigest(step.Sibling)
		if err != nil {
			return "", err
		}
		if step.Right {
			cur = nodeHash(cur, sib)
		} else {
			cur = nodeHash(sib, cur)
		}
	}
	return hex.EncodeToString(cur), nil
}

// Verify checks an inclusion proof against an expected root.
func Verify(leaf string, path []domain.ProofStep, root string) (bool, error) {
	folded, err := Fold(leaf, path)
	if err != nil {
		return false, err
	}
	return folded == root, nil
}

func nextLevel(level [][]byte) [][]byte {
	next := make([][]byte, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		if i+1 < len(level) {
			next = append(next, nodeHash(level[i], level[i+1]))
		} else {
			next = append(next, nodeHash(level[i], level[i]))
		}
	}
	return next
}

func decodeLeaves(leaves []string) ([][]byte, error) {
	out := make([][]byte, len(leaves))
	for i, leaf := range leaves {
		raw, err := decodeDigest(leaf)
		if err != nil {
			return nil, fmt.Errorf("leaf %d: %w", i, err)
		}
		out[i] = raw
	}
	return out, nil
}

func decodeDigest(digest string) ([]byte, error) {
	raw, err := hex.DecodeString(digest)
	if err != nil || len(raw) != HashSize {
		return nil, ErrInvalidLeaf
	}
	return raw, nil
}
