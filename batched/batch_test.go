package batched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forestrie/go-batchedmerkle/bloom"
	"github.com/forestrie/go-batchedmerkle/hasher"
	"github.com/forestrie/go-batchedmerkle/zerocopy"
)

func val(i uint64) [32]byte { return hasher.Uint64ToBytes32BE(i) }

func newChains(t *testing.T, capacity uint64) *zerocopy.Vec[[32]byte] {
	t.Helper()
	v, _, err := zerocopy.NewVecAt(make([]byte, zerocopy.VecBytes(capacity, 32)), capacity, zerocopy.Bytes32)
	require.NoError(t, err)
	return v
}

func TestBatchStateMachine(t *testing.T) {
	h := hasher.Keccak{}
	b := NewBatch(3, 8*1024, 4, 2, 0)
	chains := newChains(t, b.NumZkpBatches())
	filter := make([]byte, 1024)

	for i := uint64(1); i <= 4; i++ {
		require.NoError(t, b.Insert(h, val(i), val(i), filter, nil, chains))
		assert.Equal(t, i, b.NumInsertedElements())
	}
	assert.Equal(t, BatchFull, b.State)
	assert.Equal(t, uint64(2), b.CurrentZkpBatchIndex)
	assert.Equal(t, uint64(0), b.NumInserted)
	assert.Equal(t, uint64(2), b.NumReadyZkpUpdates())

	err := b.Insert(h, val(5), val(5), filter, nil, chains)
	require.ErrorIs(t, err, ErrBatchNotReady)

	want, err := hasher.HashChain(h, val(1), val(2))
	require.NoError(t, err)
	got, _ := chains.Get(0)
	assert.Equal(t, want, got)
	want, err = hasher.HashChain(h, val(3), val(4))
	require.NoError(t, err)
	got, _ = chains.Get(1)
	assert.Equal(t, want, got)

	zkp, err := b.FirstReadyZkpBatch()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), zkp)

	state, err := b.MarkAsInserted(10, 3, 20)
	require.NoError(t, err)
	assert.Equal(t, BatchFull, state)
	assert.Equal(t, uint64(0), b.SequenceNumber)

	state, err = b.MarkAsInserted(11, 4, 20)
	require.NoError(t, err)
	assert.Equal(t, BatchInserted, state)
	assert.Equal(t, uint64(31), b.SequenceNumber)
	assert.Equal(t, uint32(4), b.RootIndex)
	assert.Equal(t, uint64(0), b.CurrentZkpBatchIndex)
	assert.Equal(t, uint64(0), b.NumInsertedElements())

	_, err = b.MarkAsInserted(12, 5, 20)
	require.ErrorIs(t, err, ErrBatchAlreadyInserted)
	require.ErrorIs(t, b.AdvanceToFull(), ErrBatchNotReady)

	b.BloomFilterIsWiped = true
	start := uint64(8)
	require.NoError(t, b.AdvanceToFill(&start))
	assert.Equal(t, BatchFill, b.State)
	assert.Equal(t, uint64(8), b.StartIndex)
	assert.Equal(t, uint64(0), b.SequenceNumber)
	assert.Equal(t, uint32(0), b.RootIndex)
	assert.Equal(t, uint64(0), b.NumInsertedZkps)
	assert.False(t, b.BloomFilterIsWiped)
	require.ErrorIs(t, b.AdvanceToFill(nil), ErrBatchNotReady)
}

func TestBatchMarkAsInsertedNeedsCompleteZkpBatch(t *testing.T) {
	h := hasher.Keccak{}
	b := NewBatch(3, 8*1024, 4, 2, 0)
	chains := newChains(t, b.NumZkpBatches())
	filter := make([]byte, 1024)

	_, err := b.MarkAsInserted(1, 1, 10)
	require.ErrorIs(t, err, ErrBatchNotReady)

	require.NoError(t, b.Insert(h, val(1), val(1), filter, nil, chains))
	_, err = b.MarkAsInserted(1, 1, 10)
	require.ErrorIs(t, err, ErrBatchNotReady)

	require.NoError(t, b.Insert(h, val(2), val(2), filter, nil, chains))
	state, err := b.MarkAsInserted(1, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, BatchFill, state)
	assert.Equal(t, uint64(1), b.NumInsertedZkps)
}

func TestBatchInsertRejectsDuplicates(t *testing.T) {
	h := hasher.Keccak{}
	b := NewBatch(3, 8*1024, 4, 2, 0)
	chains := newChains(t, b.NumZkpBatches())
	filter := make([]byte, 1024)
	other := make([]byte, 1024)
	v7 := val(7)
	require.NoError(t, bloom.InsertV1(other, 3, v7[:]))

	require.NoError(t, b.Insert(h, val(1), val(1), filter, [][]byte{other}, chains))
	before := b

	err := b.Insert(h, val(1), val(100), filter, [][]byte{other}, chains)
	require.ErrorIs(t, err, ErrNonInclusionCheckFailed)
	err = b.Insert(h, val(7), val(101), filter, [][]byte{other}, chains)
	require.ErrorIs(t, err, ErrNonInclusionCheckFailed)

	assert.Equal(t, before, b)
	assert.Equal(t, uint64(1), chains.Len())
	got, _ := chains.Get(0)
	assert.Equal(t, val(1), got)
}

func TestBatchStoreAndHashValue(t *testing.T) {
	h := hasher.Keccak{}
	b := NewBatch(0, 0, 4, 2, 10)
	chains := newChains(t, b.NumZkpBatches())
	values := newChains(t, 4)

	for i := uint64(0); i < 3; i++ {
		require.NoError(t, b.StoreAndHashValue(h, val(i), values, chains))
	}
	assert.Equal(t, uint64(3), values.Len())
	assert.True(t, b.ValueIsInserted(12))
	assert.False(t, b.ValueIsInserted(13))
	assert.True(t, b.LeafIndexCouldExist(13))
	assert.False(t, b.LeafIndexCouldExist(14))
	assert.False(t, b.LeafIndexCouldExist(9))

	idx, err := b.ValueIndex(12)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), idx)
	_, err = b.ValueIndex(20)
	require.ErrorIs(t, err, ErrLeafIndexNotInBatch)
}

func TestBatchCodecRoundTrip(t *testing.T) {
	b := NewBatch(3, 8*1024, 4, 2, 7)
	b.State = BatchInserted
	b.NumInsertedZkps = 2
	b.SequenceNumber = 99
	b.RootIndex = 5
	b.BloomFilterIsWiped = true

	buf := make([]byte, BatchBytes)
	batchZC.Encode(buf, b)
	assert.Equal(t, b, batchZC.Decode(buf))
}
