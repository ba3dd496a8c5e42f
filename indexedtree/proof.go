package indexedtree

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/forestrie/go-batchedmerkle/concurrent"
	"github.com/forestrie/go-batchedmerkle/hasher"
	"github.com/forestrie/go-batchedmerkle/indexedarray"
)

// NonInclusionProof proves a value absent under Root: the bracketing low
// element and the merkle path of its leaf.
type NonInclusionProof struct {
	Bracket   indexedarray.NonInclusionProof
	LeafProof [][32]byte
	Root      [32]byte
}

// NonInclusionProof returns a proof that value is absent from the current
// tree. It fails with indexedarray.ErrElementAlreadyExists if it is present.
func (t *Tree) NonInclusionProof(value *uint256.Int) (NonInclusionProof, error) {
	bracket, err := t.array.NonInclusionProof(value)
	if err != nil {
		return NonInclusionProof{}, err
	}
	path, err := t.ref.Proof(bracket.LowIndex)
	if err != nil {
		return NonInclusionProof{}, err
	}
	return NonInclusionProof{Bracket: bracket, LeafProof: path, Root: t.merkle.Root()}, nil
}

// VerifyNonInclusion checks p shows value absent under root.
func VerifyNonInclusion(h hasher.Hasher, root [32]byte, value *uint256.Int, p NonInclusionProof) error {
	if !p.Bracket.Value.Eq(value) {
		return ErrProofValueMismatch
	}
	if err := p.Bracket.Check(); err != nil {
		return err
	}
	leaf, err := p.Bracket.LowLeafHash(h)
	if err != nil {
		return err
	}
	computed, err := concurrent.ComputeRoot(h, leaf, p.Bracket.LowIndex, p.LeafProof)
	if err != nil {
		return err
	}
	if computed != root {
		return fmt.Errorf("%w: expected=%x, computed=%x", ErrInvalidNonInclusionProof, root, computed)
	}
	return nil
}
