package accountstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forestrie/go-batchedmerkle/batched"
	"github.com/forestrie/go-batchedmerkle/treetesting"
)

func TestCommitterCreateAndUpdate(t *testing.T) {
	tc := treetesting.NewTestContext(t, treetesting.TestConfig{TestLabelPrefix: "committer", Seed: 1})
	ctx := context.Background()
	c := NewAccountCommitter(tc.Log, NewMemoryStore())
	p := treetesting.SmallStateTreeParams()
	treeKey, queueKey := tc.Pubkey(), tc.Pubkey()

	treeAC := c.CreateContext(KindTree, treeKey, p.TreeAccountBytes())
	queueAC := c.CreateContext(KindQueue, queueKey, p.OutputQueueBytes())
	_, _, err := batched.InitStateTree(treeAC.Data, queueAC.Data, treeKey, queueKey, p, 0, 0)
	require.NoError(t, err)
	require.NoError(t, c.CommitContext(ctx, treeAC))
	require.NoError(t, c.CommitContext(ctx, queueAC))
	assert.False(t, treeAC.Creating)
	assert.NotEmpty(t, treeAC.ETag)

	// Creating the same account again must not overwrite it.
	again := c.CreateContext(KindTree, treeKey, p.TreeAccountBytes())
	assert.ErrorIs(t, c.CommitContext(ctx, again), ErrExistsOC)

	qac, err := c.GetContext(ctx, KindQueue, queueKey)
	require.NoError(t, err)
	q, err := qac.OpenOutputQueue()
	require.NoError(t, err)
	v := tc.FieldValue()
	require.NoError(t, q.InsertIntoCurrentBatch(v))
	require.NoError(t, c.CommitContext(ctx, qac))

	reread, err := c.GetContext(ctx, KindQueue, queueKey)
	require.NoError(t, err)
	q, err = reread.OpenOutputQueue()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), q.NextIndex())
	ok, err := q.ProveInclusionByIndex(0, v)
	require.NoError(t, err)
	assert.True(t, ok)

	tac, err := c.GetContext(ctx, KindTree, treeKey)
	require.NoError(t, err)
	tree, err := tac.OpenTree()
	require.NoError(t, err)
	assert.Equal(t, queueKey, tree.Metadata().AssociatedQueue)
}

func TestCommitterRejectsStaleContext(t *testing.T) {
	tc := treetesting.NewTestContext(t, treetesting.TestConfig{TestLabelPrefix: "committer", Seed: 2})
	ctx := context.Background()
	c := NewAccountCommitter(tc.Log, NewMemoryStore())
	p := treetesting.SmallAddressTreeParams()
	key := tc.Pubkey()

	ac := c.CreateContext(KindTree, key, p.TreeAccountBytes())
	_, err := batched.InitAddressTree(ac.Data, key, p, 0)
	require.NoError(t, err)
	require.NoError(t, c.CommitContext(ctx, ac))

	first, err := c.GetContext(ctx, KindTree, key)
	require.NoError(t, err)
	second, err := c.GetContext(ctx, KindTree, key)
	require.NoError(t, err)

	tree, err := first.OpenTree()
	require.NoError(t, err)
	require.NoError(t, tree.InsertAddressIntoCurrentBatch(tc.FieldValue()))
	require.NoError(t, c.CommitContext(ctx, first))

	tree, err = second.OpenTree()
	require.NoError(t, err)
	require.NoError(t, tree.InsertAddressIntoCurrentBatch(tc.FieldValue()))
	assert.ErrorIs(t, c.CommitContext(ctx, second), ErrContentOC)

	// The loser re-reads and sees the winning write.
	require.NoError(t, second.ReadData(ctx, c.Store))
	tree, err = second.OpenTree()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tree.NumPendingElements())
}

func TestCommitterRequiresETag(t *testing.T) {
	tc := treetesting.NewTestContext(t, treetesting.TestConfig{TestLabelPrefix: "committer"})
	c := NewAccountCommitter(tc.Log, NewMemoryStore())
	ac := &AccountContext{Kind: KindTree, Key: tc.Pubkey(), Data: []byte{1}}
	ac.Path = AccountPath(ac.Kind, ac.Key)
	assert.ErrorIs(t, c.CommitContext(context.Background(), ac), ErrETagRequired)
}

func TestCommitterGetMissing(t *testing.T) {
	tc := treetesting.NewTestContext(t, treetesting.TestConfig{TestLabelPrefix: "committer"})
	c := NewAccountCommitter(tc.Log, NewMemoryStore())
	_, err := c.GetContext(context.Background(), KindTree, tc.Pubkey())
	assert.ErrorIs(t, err, ErrNotFound)
}
