package batched

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forestrie/go-batchedmerkle/hasher"
	"github.com/forestrie/go-batchedmerkle/zerocopy"
)

func smallStateParams() TreeParams {
	p := testParams()
	p.Height = 2
	p.RolloverThreshold = Some(100)
	p.BatchSize = 2
	p.OutputQueueBatchSize = 2
	return p
}

// fillStateTree appends capacity leaves through the output queue.
func fillStateTree(t *testing.T, tree *TreeAccount, q *OutputQueue) {
	t.Helper()
	for seq := uint64(0); tree.NextIndex() < tree.Capacity(); seq++ {
		insertValues(t, q, 10*seq+1, 10*seq+3)
		_, err := tree.UpdateOutputQueue(q, appendUpdate(t, tree, q, seq, tree.Root(), val(600+seq)), commitVerifier)
		require.NoError(t, err)
	}
}

func TestRolloverStateTreeAndQueue(t *testing.T) {
	p := smallStateParams()
	old, oldQ := newStateTree(t, p)
	treeBuf := make([]byte, p.TreeAccountBytes())
	queueBuf := make([]byte, p.OutputQueueBytes())
	treeKey, queueKey := NewPubkey(), NewPubkey()

	_, _, err := RolloverStateTreeAndQueue(old, oldQ, treeBuf, queueBuf, treeKey, queueKey, 1000, 1000, Some(DefaultNetworkFee), 77)
	require.ErrorIs(t, err, ErrNotReadyForRollover)

	fillStateTree(t, old, oldQ)
	assert.Equal(t, uint64(4), old.NextIndex())

	_, _, err = RolloverStateTreeAndQueue(old, oldQ, treeBuf, queueBuf, treeKey, queueKey, 1000, 1000, nil, 77)
	require.ErrorIs(t, err, ErrInvalidNetworkFee)
	assert.False(t, old.IsRolledOver())

	tree, q, err := RolloverStateTreeAndQueue(old, oldQ, treeBuf, queueBuf, treeKey, queueKey, 1000, 1000, Some(DefaultNetworkFee), 77)
	require.NoError(t, err)

	m := old.Metadata()
	require.NotNil(t, m.Rollover.RolledOverSlot)
	assert.Equal(t, uint64(77), *m.Rollover.RolledOverSlot)
	assert.Equal(t, treeKey, m.NextMerkleTree)
	assert.Equal(t, queueKey, oldQ.Metadata().NextQueue)
	assert.True(t, oldQ.IsRolledOver())

	zeroRoot, err := hasher.ZeroRoot(tree.Hasher(), p.Height)
	require.NoError(t, err)
	assert.Equal(t, zeroRoot, tree.Root())
	assert.Equal(t, uint64(0), tree.NextIndex())
	assert.Equal(t, p.Height, tree.Height())
	assert.Equal(t, p.RootHistoryCapacity, tree.RootHistoryCapacity())
	assert.Equal(t, old.BatchMetadata().BatchSize(), tree.BatchMetadata().BatchSize())
	assert.Equal(t, oldQ.BatchMetadata().ZkpBatchSize(), q.BatchMetadata().ZkpBatchSize())
	assert.Equal(t, queueKey, tree.Metadata().AssociatedQueue)
	assert.True(t, q.IsAssociated(treeKey))
	fee, err := RolloverFee(p.Height, 100, 2000)
	require.NoError(t, err)
	assert.Equal(t, fee, q.Metadata().Rollover.RolloverFee)

	_, _, err = RolloverStateTreeAndQueue(old, oldQ, treeBuf, queueBuf, NewPubkey(), NewPubkey(), 1000, 1000, Some(DefaultNetworkFee), 78)
	require.ErrorIs(t, err, ErrMerkleTreeAlreadyRolledOver)
	assert.Equal(t, KindRollover, Kind(err))

	require.ErrorIs(t, oldQ.InsertIntoCurrentBatch(val(1)), ErrMerkleTreeAlreadyRolledOver)
	require.ErrorIs(t, old.InsertNullifierIntoCurrentBatch(val(1), 0, val(2)), ErrMerkleTreeAlreadyRolledOver)
	_, err = old.ApplyBatchUpdate(BatchUpdate{}, commitVerifier)
	require.ErrorIs(t, err, ErrMerkleTreeAlreadyRolledOver)

	// the old roots stay readable
	assert.Equal(t, val(601), old.Root())
}

func TestRolloverNotConfigured(t *testing.T) {
	p := smallStateParams()
	p.RolloverThreshold = nil
	old, oldQ := newStateTree(t, p)
	fillStateTree(t, old, oldQ)

	_, _, err := RolloverStateTreeAndQueue(old, oldQ,
		make([]byte, p.TreeAccountBytes()), make([]byte, p.OutputQueueBytes()),
		NewPubkey(), NewPubkey(), 1, 1, Some(DefaultNetworkFee), 1)
	require.ErrorIs(t, err, ErrRolloverNotConfigured)
}

func TestRolloverAddressTree(t *testing.T) {
	p := testAddressParams()
	p.Height = 2
	p.BatchSize = 2
	p.RolloverThreshold = Some(50)
	old := newAddressTree(t, p)
	key := NewPubkey()

	_, err := Rollover(old, make([]byte, p.TreeAccountBytes()-1), 1000, key, Some(DefaultNetworkFee), 9)
	require.ErrorIs(t, err, zerocopy.ErrInsufficientMemory)
	assert.False(t, old.IsRolledOver())

	tree, err := Rollover(old, make([]byte, p.TreeAccountBytes()), 1000, key, Some(DefaultNetworkFee), 9)
	require.NoError(t, err)
	assert.Equal(t, TreeTypeAddress, tree.TreeType())
	assert.Equal(t, uint64(AddressTreeInitNextIndex), tree.NextIndex())
	initRoot, err := AddressTreeInitRoot(tree.Hasher(), p.Height)
	require.NoError(t, err)
	assert.Equal(t, initRoot, tree.Root())

	assert.True(t, old.IsRolledOver())
	assert.Equal(t, key, old.Metadata().NextMerkleTree)
	require.ErrorIs(t, old.InsertAddressIntoCurrentBatch(val(1)), ErrMerkleTreeAlreadyRolledOver)
	require.NoError(t, tree.InsertAddressIntoCurrentBatch(val(1)))
}

func TestRolloverWrongTreeType(t *testing.T) {
	stateTree, q := newStateTree(t, smallStateParams())
	addressTree := newAddressTree(t, testAddressParams())

	_, err := Rollover(stateTree, nil, 1, NewPubkey(), nil, 1)
	require.ErrorIs(t, err, ErrInvalidTreeType)

	_, _, err = RolloverStateTreeAndQueue(addressTree, q, nil, nil, NewPubkey(), NewPubkey(), 1, 1, nil, 1)
	require.ErrorIs(t, err, ErrInvalidTreeType)
}

func TestRolloverFee(t *testing.T) {
	fee, err := RolloverFee(2, 100, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), fee)

	fee, err = RolloverFee(10, 95, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1028), fee)

	fee, err = RolloverFee(10, 100, 102_400)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), fee)

	_, err = RolloverFee(10, 0, 1)
	require.ErrorIs(t, err, ErrInvalidRolloverThreshold)
	_, err = RolloverFee(10, 101, 1)
	require.ErrorIs(t, err, ErrInvalidRolloverThreshold)
	_, err = RolloverFee(MaxHeight+1, 50, 1)
	require.ErrorIs(t, err, ErrInvalidParams)
	_, err = RolloverFee(10, 50, math.MaxUint64)
	require.ErrorIs(t, err, ErrInvalidParams)
}
