// Package sparsetree is a binary merkle tree that keeps every node in memory.
//
// It is the off-chain replica of a concurrent or batched tree: provers and
// indexers use it to produce full inclusion proofs and to compute the new
// root a batch update will arrive at. Nodes that were never written take the
// empty subtree value for their level.
package sparsetree

import (
	"errors"
	"fmt"

	"github.com/forestrie/go-batchedmerkle/hasher"
)

var (
	ErrHeight     = errors.New("sparsetree: height must be in 1..40")
	ErrTreeFull   = errors.New("sparsetree: tree is full")
	ErrLeafIndex  = errors.New("sparsetree: leaf index out of range")
	ErrProofShape = errors.New("sparsetree: proof length does not match height")
)

// Tree is an in-memory merkle tree of fixed height.
type Tree struct {
	h      hasher.Hasher
	height uint32
	zero   *hasher.ZeroBytesTable

	// nodes[0] are the leaves, nodes[height][0] is the root. A level slice is
	// only as long as its rightmost written node.
	nodes     [][][32]byte
	nextIndex uint64
	roots     [][32]byte
}

// New returns an empty tree.
func New(h hasher.Hasher, height uint32) (*Tree, error) {
	if height == 0 || height > hasher.MaxHeight {
		return nil, fmt.Errorf("%w: %d", ErrHeight, height)
	}
	zero, err := hasher.ZeroBytes(h)
	if err != nil {
		return nil, err
	}
	t := &Tree{
		h:      h,
		height: height,
		zero:   zero,
		nodes:  make([][][32]byte, height+1),
	}
	t.roots = append(t.roots, zero[height])
	return t, nil
}

func (t *Tree) Height() uint32        { return t.height }
func (t *Tree) NextIndex() uint64     { return t.nextIndex }
func (t *Tree) Capacity() uint64      { return uint64(1) << t.height }
func (t *Tree) Hasher() hasher.Hasher { return t.h }

// Root returns the current root.
func (t *Tree) Root() [32]byte { return t.roots[len(t.roots)-1] }

// Roots returns every root the tree has had, oldest first.
func (t *Tree) Roots() [][32]byte { return append([][32]byte(nil), t.roots...) }

func (t *Tree) node(level uint32, i uint64) [32]byte {
	if i < uint64(len(t.nodes[level])) {
		return t.nodes[level][i]
	}
	return t.zero[level]
}

func (t *Tree) setNode(level uint32, i uint64, v [32]byte) {
	for uint64(len(t.nodes[level])) <= i {
		t.nodes[level] = append(t.nodes[level], t.zero[level])
	}
	t.nodes[level][i] = v
}

// Leaf returns leaf i, the zero leaf if it was never written.
func (t *Tree) Leaf(i uint64) [32]byte { return t.node(0, i) }

// Leaves returns the written leaves up to NextIndex.
func (t *Tree) Leaves() [][32]byte {
	out := make([][32]byte, t.nextIndex)
	for i := range out {
		out[i] = t.Leaf(uint64(i))
	}
	return out
}

// Set writes leaf i and recomputes its path to the root. NextIndex moves past
// i if needed.
func (t *Tree) Set(i uint64, leaf [32]byte) error {
	if i >= t.Capacity() {
		return fmt.Errorf("%w: %d", ErrLeafIndex, i)
	}

	// compute the whole path before writing so a hash error leaves the tree
	// unchanged
	path := make([][32]byte, t.height+1)
	path[0] = leaf
	cur := leaf
	for level := uint32(0); level < t.height; level++ {
		j := i >> level
		sibling := t.node(level, j^1)
		var err error
		if j&1 == 0 {
			cur, err = hasher.Hash2(t.h, cur, sibling)
		} else {
			cur, err = hasher.Hash2(t.h, sibling, cur)
		}
		if err != nil {
			return err
		}
		path[level+1] = cur
	}
	for level := uint32(0); level <= t.height; level++ {
		t.setNode(level, i>>level, path[level])
	}
	if i >= t.nextIndex {
		t.nextIndex = i + 1
	}
	t.roots = append(t.roots, cur)
	return nil
}

// Append writes leaf at NextIndex.
func (t *Tree) Append(leaf [32]byte) (uint64, error) {
	i := t.nextIndex
	if i >= t.Capacity() {
		return 0, ErrTreeFull
	}
	return i, t.Set(i, leaf)
}

// AppendBatch appends leaves in order.
func (t *Tree) AppendBatch(leaves [][32]byte) error {
	if t.nextIndex+uint64(len(leaves)) > t.Capacity() {
		return ErrTreeFull
	}
	for _, leaf := range leaves {
		if _, err := t.Append(leaf); err != nil {
			return err
		}
	}
	return nil
}

// Update overwrites an existing leaf.
func (t *Tree) Update(i uint64, leaf [32]byte) error {
	if i >= t.nextIndex {
		return fmt.Errorf("%w: %d >= next index %d", ErrLeafIndex, i, t.nextIndex)
	}
	return t.Set(i, leaf)
}

// Proof returns the sibling path of leaf i, bottom up.
func (t *Tree) Proof(i uint64) ([][32]byte, error) {
	if i >= t.Capacity() {
		return nil, fmt.Errorf("%w: %d", ErrLeafIndex, i)
	}
	proof := make([][32]byte, t.height)
	for level := uint32(0); level < t.height; level++ {
		proof[level] = t.node(level, (i>>level)^1)
	}
	return proof, nil
}

// ComputeRoot folds leaf up through proof.
func ComputeRoot(h hasher.Hasher, leaf [32]byte, index uint64, proof [][32]byte) ([32]byte, error) {
	cur := leaf
	for level, sibling := range proof {
		var err error
		if (index>>uint(level))&1 == 0 {
			cur, err = hasher.Hash2(h, cur, sibling)
		} else {
			cur, err = hasher.Hash2(h, sibling, cur)
		}
		if err != nil {
			return [32]byte{}, err
		}
	}
	return cur, nil
}

// Verify reports whether proof shows leaf at index under root.
func (t *Tree) Verify(root [32]byte, leaf [32]byte, index uint64, proof [][32]byte) (bool, error) {
	if len(proof) != int(t.height) {
		return false, ErrProofShape
	}
	got, err := ComputeRoot(t.h, leaf, index, proof)
	if err != nil {
		return false, err
	}
	return got == root, nil
}
