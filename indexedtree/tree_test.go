package indexedtree

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forestrie/go-batchedmerkle/concurrent"
	"github.com/forestrie/go-batchedmerkle/hasher"
	"github.com/forestrie/go-batchedmerkle/indexedarray"
	"github.com/forestrie/go-batchedmerkle/sparsetree"
)

func newTree(t *testing.T, h hasher.Hasher, height uint32) *Tree {
	t.Helper()
	buf := make([]byte, AccountBytes(height, 16, 16))
	tree, err := New(buf, h, height, 16, 16)
	require.NoError(t, err)
	return tree
}

// rebuildRoot hashes every array element into a fresh reference tree.
func rebuildRoot(t *testing.T, h hasher.Hasher, tree *Tree) [32]byte {
	t.Helper()
	ref, err := sparsetree.New(h, tree.Merkle().Height())
	require.NoError(t, err)
	for _, e := range tree.Array().Elements() {
		leaf, err := tree.leafHash(e)
		require.NoError(t, err)
		_, err = ref.Append(leaf)
		require.NoError(t, err)
	}
	return ref.Root()
}

func TestNewHasSentinels(t *testing.T) {
	h := hasher.Keccak{}
	tree := newTree(t, h, 4)
	assert.Equal(t, uint64(2), tree.NextIndex())
	assert.Equal(t, uint64(2), tree.SequenceNumber())
	assert.Equal(t, rebuildRoot(t, h, tree), tree.Root())

	_, err := New(make([]byte, AccountBytes(1, 4, 4)), h, 1, 4, 4)
	require.ErrorIs(t, err, ErrHeightTooSmall)
}

func TestInsertAddress(t *testing.T) {
	for _, h := range []hasher.Hasher{hasher.Keccak{}, hasher.Poseidon{}} {
		t.Run(h.Kind().String(), func(t *testing.T) {
			tree := newTree(t, h, 6)
			for _, v := range []uint64{30, 10, 20, 40, 5} {
				before := tree.Root()
				w, err := tree.InsertAddress(uint256.NewInt(v))
				require.NoError(t, err)
				assert.Equal(t, before, w.OldRoot)
				assert.Equal(t, tree.Root(), w.NewRoot)
				assert.Equal(t, before, w.NonInclusion.Root)
				require.NoError(t, VerifyNonInclusion(h, w.OldRoot, uint256.NewInt(v), w.NonInclusion))
				require.NoError(t, tree.Merkle().ValidateProof(tree.ref.Leaf(w.NewElementIndex), w.NewElementIndex, w.NewElementProof))
			}
			assert.Equal(t, rebuildRoot(t, h, tree), tree.Root())
			// two tree operations per insert
			assert.Equal(t, uint64(2+2*5), tree.SequenceNumber())
		})
	}
}

func TestNonInclusionSoundness(t *testing.T) {
	h := hasher.Keccak{}
	tree := newTree(t, h, 5)
	for _, v := range []uint64{100, 200, 300} {
		_, err := tree.InsertAddress(uint256.NewInt(v))
		require.NoError(t, err)
	}

	p, err := tree.NonInclusionProof(uint256.NewInt(150))
	require.NoError(t, err)
	require.NoError(t, VerifyNonInclusion(h, tree.Root(), uint256.NewInt(150), p))

	// a present value has no proof
	_, err = tree.NonInclusionProof(uint256.NewInt(200))
	require.ErrorIs(t, err, indexedarray.ErrElementAlreadyExists)

	// reusing the proof for another value fails
	require.ErrorIs(t, VerifyNonInclusion(h, tree.Root(), uint256.NewInt(250), p), ErrProofValueMismatch)

	// widening the bracket to cover a present value breaks the leaf hash
	forged := p
	forged.Bracket.Value = *uint256.NewInt(250)
	forged.Bracket.LowNextValue = *uint256.NewInt(300)
	require.ErrorIs(t, VerifyNonInclusion(h, tree.Root(), uint256.NewInt(250), forged), ErrInvalidNonInclusionProof)

	// a proof against a stale root does not verify against the new one
	_, err = tree.InsertAddress(uint256.NewInt(120))
	require.NoError(t, err)
	require.ErrorIs(t, VerifyNonInclusion(h, tree.Root(), uint256.NewInt(150), p), ErrInvalidNonInclusionProof)
}

func TestInsertRejects(t *testing.T) {
	h := hasher.Keccak{}
	tree := newTree(t, h, 2)

	_, err := tree.InsertAddress(&indexedarray.HighestAddressPlusOne)
	require.ErrorIs(t, err, ErrValueOutOfRange)

	_, err = tree.InsertAddress(uint256.NewInt(7))
	require.NoError(t, err)
	_, err = tree.InsertAddress(uint256.NewInt(7))
	require.ErrorIs(t, err, indexedarray.ErrElementAlreadyExists)

	_, err = tree.InsertAddress(uint256.NewInt(8))
	require.NoError(t, err)

	// four leaves fill a height 2 tree
	root := tree.Root()
	elements := tree.Array().Len()
	_, err = tree.InsertAddress(uint256.NewInt(9))
	require.ErrorIs(t, err, concurrent.ErrTreeFull)
	assert.Equal(t, root, tree.Root())
	assert.Equal(t, elements, tree.Array().Len())
}
