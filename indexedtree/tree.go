// Package indexedtree combines an indexed array with a concurrent merkle tree
// so that absence of a value can be proven against a root.
//
// Leaf i of the tree is the hash of element i of the array. Inserting a value
// rewrites the leaf of its low element (whose next pointer changes) and
// appends the leaf of the new element. An in-memory reference tree keeps every
// node so full proofs are available for the low leaf.
package indexedtree

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/forestrie/go-batchedmerkle/concurrent"
	"github.com/forestrie/go-batchedmerkle/hasher"
	"github.com/forestrie/go-batchedmerkle/indexedarray"
	"github.com/forestrie/go-batchedmerkle/sparsetree"
)

var (
	ErrValueOutOfRange          = errors.New("indexedtree: value must be below HighestAddressPlusOne")
	ErrInvalidNonInclusionProof = errors.New("indexedtree: non-inclusion proof does not match root")
	ErrProofValueMismatch       = errors.New("indexedtree: proof is for a different value")
	ErrOutOfSync                = errors.New("indexedtree: array and tree disagree on the next index")
	ErrHeightTooSmall           = errors.New("indexedtree: height must be at least 2")
)

// Tree is an indexed merkle tree.
type Tree struct {
	h      hasher.Hasher
	merkle *concurrent.Tree
	array  *indexedarray.Array
	ref    *sparsetree.Tree
}

// AccountBytes returns the buffer size for the merkle part of the tree.
func AccountBytes(height uint32, changelogCapacity, rootsCapacity uint64) uint64 {
	return concurrent.AccountBytes(height, changelogCapacity, rootsCapacity)
}

// New initializes an indexed tree in buf holding the zero element and the
// HighestAddressPlusOne sentinel.
func New(buf []byte, h hasher.Hasher, height uint32, changelogCapacity, rootsCapacity uint64) (*Tree, error) {
	if height < 2 {
		return nil, ErrHeightTooSmall
	}
	merkle, err := concurrent.New(buf, h, height, changelogCapacity, rootsCapacity)
	if err != nil {
		return nil, err
	}
	ref, err := sparsetree.New(h, height)
	if err != nil {
		return nil, err
	}
	array := indexedarray.New()
	if err := array.Init(); err != nil {
		return nil, err
	}

	t := &Tree{h: h, merkle: merkle, array: array, ref: ref}
	for i := 0; i < array.Len(); i++ {
		e, _ := array.Get(uint64(i))
		leaf, err := t.leafHash(e)
		if err != nil {
			return nil, err
		}
		if _, err := merkle.Append(leaf); err != nil {
			return nil, err
		}
		if _, err := ref.Append(leaf); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Tree) leafHash(e indexedarray.Element) ([32]byte, error) {
	next := uint256.Int{}
	if !e.IsTail() {
		n, _ := t.array.Get(e.NextIndex)
		next = n.Value
	}
	return e.Hash(t.h, &next)
}

func (t *Tree) Root() [32]byte             { return t.merkle.Root() }
func (t *Tree) SequenceNumber() uint64     { return t.merkle.SequenceNumber() }
func (t *Tree) NextIndex() uint64          { return t.merkle.NextIndex() }
func (t *Tree) Merkle() *concurrent.Tree   { return t.merkle }
func (t *Tree) Array() *indexedarray.Array { return t.array }

// Witness describes one insert: the bracket that proved the value absent,
// the low leaf's path before the insert and the resulting root.
type Witness struct {
	NonInclusion    NonInclusionProof
	LowElementIndex uint64
	NewElementIndex uint64
	NewElementProof [][32]byte
	OldRoot         [32]byte
	NewRoot         [32]byte
	SequenceNumber  uint64
}

// InsertAddress inserts value. The low leaf update and the new leaf append
// are applied together: capacity and ordering are checked before the first
// write, so a failed insert leaves the tree unchanged.
func (t *Tree) InsertAddress(value *uint256.Int) (Witness, error) {
	if !value.Lt(&indexedarray.HighestAddressPlusOne) {
		return Witness{}, ErrValueOutOfRange
	}
	if t.merkle.NextIndex() >= t.merkle.Capacity() {
		return Witness{}, concurrent.ErrTreeFull
	}
	if uint64(t.array.Len()) != t.merkle.NextIndex() {
		return Witness{}, fmt.Errorf("%w: array=%d, tree=%d", ErrOutOfSync, t.array.Len(), t.merkle.NextIndex())
	}

	nonInclusion, err := t.NonInclusionProof(value)
	if err != nil {
		return Witness{}, err
	}
	bundle, err := t.array.NewElementWithLowElementIndex(nonInclusion.Bracket.LowIndex, value)
	if err != nil {
		return Witness{}, err
	}
	oldLowLeaf, err := nonInclusion.Bracket.LowLeafHash(t.h)
	if err != nil {
		return Witness{}, err
	}
	newLowLeaf, err := bundle.LowLeafHash(t.h)
	if err != nil {
		return Witness{}, err
	}
	newLeaf, err := bundle.NewLeafHash(t.h)
	if err != nil {
		return Witness{}, err
	}

	oldRoot := t.merkle.Root()
	lowIndex := bundle.NewLowElement.Index
	if _, err := t.merkle.Update(t.merkle.ChangelogIndex(), oldLowLeaf, newLowLeaf, lowIndex, nonInclusion.LeafProof); err != nil {
		return Witness{}, err
	}
	info, proof, err := t.merkle.AppendWithProof(newLeaf)
	if err != nil {
		return Witness{}, err
	}
	if err := t.ref.Update(lowIndex, newLowLeaf); err != nil {
		return Witness{}, err
	}
	if _, err := t.ref.Append(newLeaf); err != nil {
		return Witness{}, err
	}
	bundle.NewElement.SequenceNumber = info.SequenceNumber
	if err := t.array.Commit(bundle); err != nil {
		return Witness{}, err
	}

	return Witness{
		NonInclusion:    nonInclusion,
		LowElementIndex: lowIndex,
		NewElementIndex: info.LeafIndex,
		NewElementProof: proof,
		OldRoot:         oldRoot,
		NewRoot:         info.Root,
		SequenceNumber:  info.SequenceNumber,
	}, nil
}
