package sparsetree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forestrie/go-batchedmerkle/hasher"
)

func leaf(i uint64) [32]byte { return hasher.Uint64ToBytes32BE(i + 1) }

func TestEmptyRoot(t *testing.T) {
	h := hasher.Keccak{}
	tr, err := New(h, 10)
	require.NoError(t, err)
	want, err := hasher.ZeroRoot(h, 10)
	require.NoError(t, err)
	assert.Equal(t, want, tr.Root())

	_, err = New(h, 0)
	require.ErrorIs(t, err, ErrHeight)
}

func TestAppendMatchesNaive(t *testing.T) {
	h := hasher.Sha256{}
	tr, err := New(h, 3)
	require.NoError(t, err)

	var leaves [8][32]byte
	for i := uint64(0); i < 5; i++ {
		leaves[i] = leaf(i)
		_, err := tr.Append(leaves[i])
		require.NoError(t, err)
	}

	// hash the full 8 leaf tree level by level
	level := leaves[:]
	for len(level) > 1 {
		var next [][32]byte
		for j := 0; j < len(level); j += 2 {
			p, _ := hasher.Hash2(h, level[j], level[j+1])
			next = append(next, p)
		}
		level = next
	}
	assert.Equal(t, level[0], tr.Root())
	assert.Len(t, tr.Roots(), 6)
}

func TestProofAndUpdate(t *testing.T) {
	h := hasher.Keccak{}
	tr, err := New(h, 4)
	require.NoError(t, err)
	for i := uint64(0); i < 11; i++ {
		_, err := tr.Append(leaf(i))
		require.NoError(t, err)
	}

	for i := uint64(0); i < 11; i++ {
		proof, err := tr.Proof(i)
		require.NoError(t, err)
		ok, err := tr.Verify(tr.Root(), leaf(i), i, proof)
		require.NoError(t, err)
		require.True(t, ok, "leaf %d", i)
	}

	require.NoError(t, tr.Update(3, leaf(99)))
	proof, _ := tr.Proof(3)
	ok, err := tr.Verify(tr.Root(), leaf(99), 3, proof)
	require.NoError(t, err)
	assert.True(t, ok)

	require.ErrorIs(t, tr.Update(11, leaf(0)), ErrLeafIndex)
}

func TestTreeFull(t *testing.T) {
	tr, err := New(hasher.Sha256{}, 2)
	require.NoError(t, err)
	require.NoError(t, tr.AppendBatch([][32]byte{leaf(0), leaf(1), leaf(2), leaf(3)}))
	_, err = tr.Append(leaf(4))
	require.ErrorIs(t, err, ErrTreeFull)
	assert.Equal(t, uint64(4), tr.NextIndex())
}
