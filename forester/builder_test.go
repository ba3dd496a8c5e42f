package forester

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forestrie/go-batchedmerkle/batched"
	"github.com/forestrie/go-batchedmerkle/sparsetree"
	"github.com/forestrie/go-batchedmerkle/treetesting"
)

type recordingProver struct {
	requests []*ProofRequest
}

func (p *recordingProver) Prove(_ context.Context, req *ProofRequest) (batched.CompressedProof, error) {
	p.requests = append(p.requests, req)
	return treetesting.CommitProof(req.PublicInputHash), nil
}

func newTestBuilder(t *testing.T, tc *treetesting.TestContext) (*Builder, *recordingProver) {
	codec, err := NewRequestCodec()
	require.NoError(t, err)
	prover := &recordingProver{}
	return NewBuilder(tc.GetLog(), prover, codec), prover
}

// appendAll builds and applies appends until the output queue has no ready
// zkp batch.
func appendAll(t *testing.T, b *Builder, tree *batched.TreeAccount, q *batched.OutputQueue, replica *sparsetree.Tree) {
	for {
		i := q.BatchMetadata().NextFullBatchIndex()
		qb, err := q.Batch(i)
		require.NoError(t, err)
		if qb.State == batched.BatchInserted || !qb.IsReadyToInsert() {
			return
		}
		u, _, err := b.BuildAppend(context.Background(), tree, q, replica, nil)
		require.NoError(t, err)
		res, err := tree.UpdateOutputQueue(q, u, treetesting.CommitVerifier)
		require.NoError(t, err)
		require.Equal(t, batched.UpdateApplied, res.Status)
		require.Equal(t, replica.Root(), tree.Root())
	}
}

func TestBuildAppend(t *testing.T) {
	tc := treetesting.NewTestContext(t, treetesting.TestConfig{Seed: 11, TestLabelPrefix: "TestBuildAppend"})
	b, prover := newTestBuilder(t, tc)
	tree, q := tc.NewStateTree(treetesting.SmallStateTreeParams())
	replica, err := sparsetree.New(tree.Hasher(), tree.Height())
	require.NoError(t, err)
	require.Equal(t, tree.Root(), replica.Root())

	values := tc.FillOutputQueue(q, 4)
	appendAll(t, b, tree, q, replica)

	assert.Equal(t, uint64(4), tree.NextIndex())
	assert.Equal(t, uint64(2), tree.SequenceNumber())
	assert.Equal(t, values, replica.Leaves())
	require.Len(t, prover.requests, 2)
	assert.Equal(t, batched.CircuitBatchAppend, prover.requests[1].Circuit)
	assert.Equal(t, uint64(1), prover.requests[1].ZkpBatchIndex)
	assert.Equal(t, uint64(2), prover.requests[1].ZkpBatchSize)
}

func TestBuildAppendReplicaBehind(t *testing.T) {
	tc := treetesting.NewTestContext(t, treetesting.TestConfig{Seed: 12, TestLabelPrefix: "TestBuildAppendReplicaBehind"})
	b, _ := newTestBuilder(t, tc)
	tree, q := tc.NewStateTree(treetesting.SmallStateTreeParams())
	replica, err := sparsetree.New(tree.Hasher(), tree.Height())
	require.NoError(t, err)

	tc.FillOutputQueue(q, 2)
	tc.AppendNext(tree, q, tc.FieldValue())

	_, _, err = b.BuildAppend(context.Background(), tree, q, replica, nil)
	require.ErrorIs(t, err, ErrReplicaOutOfSync)
}

func TestBuildNullifyOutOfOrder(t *testing.T) {
	tc := treetesting.NewTestContext(t, treetesting.TestConfig{Seed: 13, TestLabelPrefix: "TestBuildNullifyOutOfOrder"})
	b, _ := newTestBuilder(t, tc)
	tree, q := tc.NewStateTree(treetesting.SmallStateTreeParams())
	replica, err := sparsetree.New(tree.Hasher(), tree.Height())
	require.NoError(t, err)

	values := tc.FillOutputQueue(q, 4)
	appendAll(t, b, tree, q, replica)

	leaves := make([]NullifyLeaf, len(values))
	for i, v := range values {
		leaves[i] = NullifyLeaf{AccountHash: v, LeafIndex: uint64(i), TxHash: tc.FieldValue()}
		require.NoError(t, tree.InsertNullifierIntoCurrentBatch(v, uint64(i), leaves[i].TxHash))
	}

	s0, err := NextSlot(tree)
	require.NoError(t, err)
	s1 := s0.Next(tree.BatchMetadata())
	assert.Equal(t, Slot{BatchIndex: 0, ZkpBatchIndex: 1, ExpectedSequenceNumber: 3}, s1)

	u0, in0, err := b.BuildNullify(context.Background(), tree, s0, replica, leaves[:2])
	require.NoError(t, err)
	u1, _, err := b.BuildNullify(context.Background(), tree, s1, replica, leaves[2:])
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1}, in0.PathIndices)

	res, err := tree.ApplyBatchUpdate(u1, treetesting.CommitVerifier)
	require.NoError(t, err)
	assert.Equal(t, batched.UpdateDeferred, res.Status)

	res, err = tree.ApplyBatchUpdate(u0, treetesting.CommitVerifier)
	require.NoError(t, err)
	assert.Equal(t, batched.UpdateApplied, res.Status)
	assert.Len(t, res.Replayed, 1)
	assert.Equal(t, uint64(4), tree.SequenceNumber())
	assert.Equal(t, replica.Root(), tree.Root())
}

func TestBuildNullifyChecks(t *testing.T) {
	tc := treetesting.NewTestContext(t, treetesting.TestConfig{Seed: 14, TestLabelPrefix: "TestBuildNullifyChecks"})
	b, _ := newTestBuilder(t, tc)
	tree, q := tc.NewStateTree(treetesting.SmallStateTreeParams())
	replica, err := sparsetree.New(tree.Hasher(), tree.Height())
	require.NoError(t, err)

	values := tc.FillOutputQueue(q, 4)
	appendAll(t, b, tree, q, replica)

	tx := tc.FieldValue()
	require.NoError(t, tree.InsertNullifierIntoCurrentBatch(values[0], 0, tx))
	s0, err := NextSlot(tree)
	require.NoError(t, err)

	leaves := []NullifyLeaf{{AccountHash: values[0], LeafIndex: 0, TxHash: tx}}
	_, _, err = b.BuildNullify(context.Background(), tree, s0, replica, leaves)
	require.ErrorIs(t, err, ErrLeafCount)

	require.NoError(t, tree.InsertNullifierIntoCurrentBatch(values[1], 1, tx))
	wrong := append(leaves, NullifyLeaf{AccountHash: values[1], LeafIndex: 2, TxHash: tx})
	_, _, err = b.BuildNullify(context.Background(), tree, s0, replica, wrong)
	require.ErrorIs(t, err, batched.ErrHashChainMismatch)

	// zkp batch 1 is not filled yet
	_, _, err = b.BuildNullify(context.Background(), tree, s0.Next(tree.BatchMetadata()), replica, wrong)
	require.ErrorIs(t, err, batched.ErrBatchNotReady)

	other, err := sparsetree.New(tree.Hasher(), tree.Height())
	require.NoError(t, err)
	right := append(leaves, NullifyLeaf{AccountHash: values[1], LeafIndex: 1, TxHash: tx})
	_, _, err = b.BuildNullify(context.Background(), tree, s0, other, right)
	require.ErrorIs(t, err, ErrReplicaOutOfSync)
}

func TestBuildAddressAppend(t *testing.T) {
	tc := treetesting.NewTestContext(t, treetesting.TestConfig{Seed: 15, TestLabelPrefix: "TestBuildAddressAppend"})
	b, prover := newTestBuilder(t, tc)
	tree := tc.NewAddressTree(treetesting.SmallAddressTreeParams())
	replica, err := NewAddressReplica(tree.Hasher(), tree.Height())
	require.NoError(t, err)
	require.Equal(t, tree.Root(), replica.Tree.Root())
	require.Equal(t, tree.NextIndex(), replica.Tree.NextIndex())

	addresses := tc.FieldValues(4)
	for _, a := range addresses {
		require.NoError(t, tree.InsertAddressIntoCurrentBatch(a))
	}

	s0, err := NextSlot(tree)
	require.NoError(t, err)
	s1 := s0.Next(tree.BatchMetadata())
	u0, in0, err := b.BuildAddressAppend(context.Background(), tree, s0, replica, addresses[:2])
	require.NoError(t, err)
	u1, in1, err := b.BuildAddressAppend(context.Background(), tree, s1, replica, addresses[2:])
	require.NoError(t, err)
	assert.Equal(t, uint64(2), in0.StartIndex)
	assert.Equal(t, uint64(4), in1.StartIndex)
	assert.Len(t, in1.LowElementProofs, 2)

	for _, u := range []batched.BatchUpdate{u0, u1} {
		res, err := tree.ApplyBatchUpdate(u, treetesting.CommitVerifier)
		require.NoError(t, err)
		require.Equal(t, batched.UpdateApplied, res.Status)
	}
	assert.Equal(t, uint64(6), tree.NextIndex())
	assert.Equal(t, replica.Tree.Root(), tree.Root())
	assert.Equal(t, 6, replica.Array.Len())
	require.Len(t, prover.requests, 2)
	assert.Equal(t, batched.CircuitBatchAddressAppend, prover.requests[0].Circuit)

	_, _, err = b.BuildAddressAppend(context.Background(), tree, s0, replica, addresses[:2])
	require.ErrorIs(t, err, batched.ErrStaleChangelogEntry)
}

func TestBuildNullifyBeforeAppend(t *testing.T) {
	tc := treetesting.NewTestContext(t, treetesting.TestConfig{Seed: 16, TestLabelPrefix: "TestBuildNullifyBeforeAppend"})
	b, _ := newTestBuilder(t, tc)
	tree, q := tc.NewStateTree(treetesting.SmallStateTreeParams())
	replica, err := sparsetree.New(tree.Hasher(), tree.Height())
	require.NoError(t, err)

	values := tc.FillOutputQueue(q, 4)
	leaves := make([]NullifyLeaf, 2)
	for i := range leaves {
		leaves[i] = NullifyLeaf{AccountHash: values[i], LeafIndex: uint64(i), TxHash: tc.FieldValue()}
		require.NoError(t, q.ProveInclusionByIndexAndZeroOutLeaf(uint64(i), values[i]))
		require.NoError(t, tree.InsertNullifierIntoCurrentBatch(values[i], uint64(i), leaves[i].TxHash))
	}

	s0, err := NextSlot(tree)
	require.NoError(t, err)
	u, _, err := b.BuildNullify(context.Background(), tree, s0, replica, leaves)
	require.NoError(t, err)
	res, err := tree.ApplyBatchUpdate(u, treetesting.CommitVerifier)
	require.NoError(t, err)
	require.Equal(t, batched.UpdateApplied, res.Status)
	nullified := replica.Leaf(0)

	// the queue no longer holds the spent values
	_, _, err = b.BuildAppend(context.Background(), tree, q, replica, nil)
	require.ErrorIs(t, err, batched.ErrHashChainMismatch)

	ba, inputs, err := b.BuildAppend(context.Background(), tree, q, replica, values[:2])
	require.NoError(t, err)
	assert.Equal(t, Hash(nullified), inputs.OldLeaves[0])
	res, err = tree.UpdateOutputQueue(q, ba, treetesting.CommitVerifier)
	require.NoError(t, err)
	require.Equal(t, batched.UpdateApplied, res.Status)
	assert.Equal(t, nullified, replica.Leaf(0))
	assert.Equal(t, replica.Root(), tree.Root())
	assert.Equal(t, uint64(2), tree.NextIndex())
}
