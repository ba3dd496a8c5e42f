package batched

import (
	"fmt"

	"github.com/forestrie/go-batchedmerkle/zerocopy"
)

// params reconstructs the creation parameters from the account.
func (t *TreeAccount) params() (TreeParams, error) {
	m := t.Metadata()
	bm := t.BatchMetadata()
	b, err := t.queue.Batch(0)
	if err != nil {
		return TreeParams{}, err
	}
	return TreeParams{
		Owner:               m.Access.Owner,
		ProgramOwner:        m.Access.ProgramOwner,
		Forester:            m.Access.Forester,
		Index:               m.Rollover.Index,
		RolloverThreshold:   m.Rollover.RolloverThreshold,
		CloseThreshold:      m.Rollover.CloseThreshold,
		NetworkFee:          m.Rollover.NetworkFee,
		AdditionalBytes:     m.Rollover.AdditionalBytes,
		Hasher:              t.h.Kind(),
		Height:              t.Height(),
		RootHistoryCapacity: t.RootHistoryCapacity(),
		NumBatches:          bm.NumBatches(),
		BatchSize:           bm.BatchSize(),
		ZkpBatchSize:        bm.ZkpBatchSize(),
		BloomFilterCapacity: bm.BloomFilterCapacity(),
		BloomFilterNumIters: b.NumIters,
	}, nil
}

// checkRolloverReady applies the rollover preconditions in order: a
// threshold must be configured, the tree must not be rolled over already,
// and next index must have reached threshold percent of the capacity.
func (t *TreeAccount) checkRolloverReady(networkFee *uint64) error {
	m := t.Metadata()
	if m.Rollover.RolloverThreshold == nil {
		return ErrRolloverNotConfigured
	}
	if m.Rollover.IsRolledOver() {
		return ErrMerkleTreeAlreadyRolledOver
	}
	threshold := *m.Rollover.RolloverThreshold
	if t.NextIndex() < t.Capacity()*threshold/100 {
		return fmt.Errorf("%w: next index %d, threshold %d%% of %d", ErrNotReadyForRollover, t.NextIndex(), threshold, t.Capacity())
	}
	if (networkFee == nil) != (m.Rollover.NetworkFee == nil) {
		return ErrInvalidNetworkFee
	}
	return nil
}

func (t *TreeAccount) markRolledOver(next Pubkey, slot uint64) {
	m := t.Metadata()
	m.Rollover.RolledOverSlot = Some(slot)
	m.NextMerkleTree = next
	t.setMetadata(m)
}

// Rollover retires an address tree and initializes its successor in newBuf
// with the same geometry. The old tree keeps its roots for historical
// proofs but rejects every further mutation.
func Rollover(old *TreeAccount, newBuf []byte, newRent uint64, newPubkey Pubkey, networkFee *uint64, slot uint64) (*TreeAccount, error) {
	if err := old.checkType(TreeTypeAddress); err != nil {
		return nil, err
	}
	if err := old.checkRolloverReady(networkFee); err != nil {
		return nil, err
	}
	p, err := old.params()
	if err != nil {
		return nil, err
	}
	p.NetworkFee = networkFee
	if err := zerocopy.CheckSize(newBuf, p.TreeAccountBytes()); err != nil {
		return nil, err
	}
	t, err := InitAddressTree(newBuf, newPubkey, p, newRent)
	if err != nil {
		return nil, err
	}
	old.markRolledOver(newPubkey, slot)
	return t, nil
}

// RolloverStateTreeAndQueue retires a state tree and its output queue and
// initializes both successors with the same geometry.
func RolloverStateTreeAndQueue(
	oldTree *TreeAccount, oldQueue *OutputQueue,
	newTreeBuf, newQueueBuf []byte,
	newTreeKey, newQueueKey Pubkey,
	treeRent, queueRent uint64,
	networkFee *uint64, slot uint64,
) (*TreeAccount, *OutputQueue, error) {
	if err := oldTree.checkType(TreeTypeState); err != nil {
		return nil, nil, err
	}
	if err := oldQueue.CheckIsAssociated(oldTree.pubkey); err != nil {
		return nil, nil, err
	}
	if err := oldTree.checkRolloverReady(networkFee); err != nil {
		return nil, nil, err
	}
	if oldQueue.IsRolledOver() {
		return nil, nil, ErrMerkleTreeAlreadyRolledOver
	}
	p, err := oldTree.params()
	if err != nil {
		return nil, nil, err
	}
	qm := oldQueue.BatchMetadata()
	p.NetworkFee = networkFee
	p.OutputQueueNumBatches = qm.NumBatches()
	p.OutputQueueBatchSize = qm.BatchSize()
	p.OutputQueueZkpBatchSize = qm.ZkpBatchSize()
	if err := zerocopy.CheckSize(newTreeBuf, p.TreeAccountBytes()); err != nil {
		return nil, nil, err
	}
	if err := zerocopy.CheckSize(newQueueBuf, p.OutputQueueBytes()); err != nil {
		return nil, nil, err
	}
	t, q, err := InitStateTree(newTreeBuf, newQueueBuf, newTreeKey, newQueueKey, p, treeRent, queueRent)
	if err != nil {
		return nil, nil, err
	}
	oldTree.markRolledOver(newTreeKey, slot)
	m := oldQueue.Metadata()
	m.Rollover.RolledOverSlot = Some(slot)
	m.NextQueue = newQueueKey
	oldQueue.setMetadata(m)
	return t, q, nil
}
