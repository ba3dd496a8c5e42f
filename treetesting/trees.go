package treetesting

import (
	"github.com/stretchr/testify/require"

	"github.com/forestrie/go-batchedmerkle/batched"
)

// SmallStateTreeParams returns a state tree geometry small enough to fill
// in a unit test.
func SmallStateTreeParams() batched.TreeParams {
	p := batched.DefaultStateTreeParams()
	p.Height = 8
	p.RootHistoryCapacity = 4
	p.BatchSize = 4
	p.ZkpBatchSize = 2
	p.BloomFilterCapacity = 8 * 1024
	p.OutputQueueBatchSize = 4
	p.OutputQueueZkpBatchSize = 2
	return p
}

// SmallAddressTreeParams is SmallStateTreeParams without the output queue.
func SmallAddressTreeParams() batched.TreeParams {
	p := SmallStateTreeParams()
	p.OutputQueueNumBatches = 0
	p.OutputQueueBatchSize = 0
	p.OutputQueueZkpBatchSize = 0
	return p
}

func (c *TestContext) NewStateTree(p batched.TreeParams) (*batched.TreeAccount, *batched.OutputQueue) {
	c.T.Helper()
	tree, q, err := batched.InitStateTree(
		make([]byte, p.TreeAccountBytes()), make([]byte, p.OutputQueueBytes()),
		c.Pubkey(), c.Pubkey(), p, 1_000_000, 1_000_000)
	require.NoError(c.T, err)
	return tree, q
}

func (c *TestContext) NewAddressTree(p batched.TreeParams) *batched.TreeAccount {
	c.T.Helper()
	tree, err := batched.InitAddressTree(make([]byte, p.TreeAccountBytes()), c.Pubkey(), p, 1_000_000)
	require.NoError(c.T, err)
	return tree
}

// AppendNext moves the next ready zkp batch of q into tree under a commit
// proof. The new root is not derived from the leaves, it is whatever the
// caller asks for.
func (c *TestContext) AppendNext(tree *batched.TreeAccount, q *batched.OutputQueue, newRoot [32]byte) batched.UpdateResult {
	c.T.Helper()
	batchIndex := q.BatchMetadata().NextFullBatchIndex()
	b, err := q.Batch(batchIndex)
	require.NoError(c.T, err)
	zkpIndex, err := b.FirstReadyZkpBatch()
	require.NoError(c.T, err)
	chain, err := q.HashChain(batchIndex, zkpIndex)
	require.NoError(c.T, err)
	pih, err := batched.AppendPublicInput(tree.Hasher(), tree.Root(), newRoot, chain, tree.NextIndex())
	require.NoError(c.T, err)
	res, err := tree.UpdateOutputQueue(q, batched.BatchAppend{
		OldRoot:                tree.Root(),
		NewRoot:                newRoot,
		HashChain:              chain,
		ExpectedSequenceNumber: tree.SequenceNumber(),
		Proof:                  CommitProof(pih),
	}, CommitVerifier)
	require.NoError(c.T, err)
	return res
}

// FillOutputQueue inserts n random values into q.
func (c *TestContext) FillOutputQueue(q *batched.OutputQueue, n int) [][32]byte {
	c.T.Helper()
	values := c.FieldValues(n)
	for _, v := range values {
		require.NoError(c.T, q.InsertIntoCurrentBatch(v))
	}
	return values
}
