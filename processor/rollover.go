package processor

import (
	"context"
	"time"

	"github.com/forestrie/go-batchedmerkle/accountstore"
	"github.com/forestrie/go-batchedmerkle/batched"
)

// RolloverStateTree retires a state tree and its output queue. The
// successors are created before the old accounts are marked, so a failed
// create leaves the old pair writable.
func (p *Processor) RolloverStateTree(
	ctx context.Context, treeKey batched.Pubkey, networkFee *uint64, slot uint64,
) (newTreeKey, newQueueKey batched.Pubkey, err error) {
	start := time.Now()
	defer func() { p.metrics.observe("rollover_state_tree", start, err) }()

	s, err := p.readStateTree(ctx, treeKey)
	if err != nil {
		return batched.Pubkey{}, batched.Pubkey{}, err
	}
	newTreeKey, newQueueKey = batched.NewPubkey(), batched.NewPubkey()
	treeCtx := p.Committer.CreateContext(accountstore.KindTree, newTreeKey, uint64(len(s.treeCtx.Data)))
	queueCtx := p.Committer.CreateContext(accountstore.KindQueue, newQueueKey, uint64(len(s.queueCtx.Data)))
	if _, _, err = batched.RolloverStateTreeAndQueue(
		s.tree, s.queue, treeCtx.Data, queueCtx.Data, newTreeKey, newQueueKey,
		p.Cfg.TreeRent, p.Cfg.QueueRent, networkFee, slot); err != nil {
		return batched.Pubkey{}, batched.Pubkey{}, err
	}
	if err = p.commit(ctx, treeCtx, queueCtx, s.treeCtx, s.queueCtx); err != nil {
		return batched.Pubkey{}, batched.Pubkey{}, err
	}
	p.metrics.rolloversTotal.WithLabelValues(batched.TreeTypeState.String()).Inc()
	p.Log.Infof("rolled over state tree %s -> %s, queue %s -> %s at slot %d, next index %d",
		treeKey, newTreeKey, s.queue.Pubkey(), newQueueKey, slot, s.tree.NextIndex())
	return newTreeKey, newQueueKey, nil
}

// RolloverAddressTree retires an address tree.
func (p *Processor) RolloverAddressTree(
	ctx context.Context, treeKey batched.Pubkey, networkFee *uint64, slot uint64,
) (newKey batched.Pubkey, err error) {
	start := time.Now()
	defer func() { p.metrics.observe("rollover_address_tree", start, err) }()

	old, t, err := p.readAddressTree(ctx, treeKey)
	if err != nil {
		return batched.Pubkey{}, err
	}
	newKey = batched.NewPubkey()
	ac := p.Committer.CreateContext(accountstore.KindTree, newKey, uint64(len(old.Data)))
	if _, err = batched.Rollover(t, ac.Data, p.Cfg.TreeRent, newKey, networkFee, slot); err != nil {
		return batched.Pubkey{}, err
	}
	if err = p.commit(ctx, ac, old); err != nil {
		return batched.Pubkey{}, err
	}
	p.metrics.rolloversTotal.WithLabelValues(batched.TreeTypeAddress.String()).Inc()
	p.Log.Infof("rolled over address tree %s -> %s at slot %d, next index %d", treeKey, newKey, slot, t.NextIndex())
	return newKey, nil
}
