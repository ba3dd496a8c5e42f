package processor

import (
	"context"
	"time"

	"github.com/forestrie/go-batchedmerkle/batched"
)

// ApplyBatchUpdate verifies and applies, or defers, one input queue update
// of a state or address tree.
func (p *Processor) ApplyBatchUpdate(ctx context.Context, treeKey batched.Pubkey, u batched.BatchUpdate) (res batched.UpdateResult, err error) {
	start := time.Now()
	defer func() { p.metrics.observe("apply_batch_update", start, err) }()

	ac, t, err := p.readTree(ctx, treeKey)
	if err != nil {
		return batched.UpdateResult{}, err
	}
	if res, err = t.ApplyBatchUpdate(u, p.Verifier); err != nil {
		return batched.UpdateResult{}, err
	}
	if err = p.commit(ctx, ac); err != nil {
		return batched.UpdateResult{}, err
	}
	p.logResult("batch update", t, res)
	p.metrics.observeResult(res)
	return res, nil
}

// AppendBatch appends the next ready zkp batch of the output queue to its
// state tree. The tree is committed before the queue.
func (p *Processor) AppendBatch(ctx context.Context, treeKey batched.Pubkey, a batched.BatchAppend) (res batched.UpdateResult, err error) {
	start := time.Now()
	defer func() { p.metrics.observe("append_batch", start, err) }()

	s, err := p.readStateTree(ctx, treeKey)
	if err != nil {
		return batched.UpdateResult{}, err
	}
	if res, err = s.tree.UpdateOutputQueue(s.queue, a, p.Verifier); err != nil {
		return batched.UpdateResult{}, err
	}
	if err = p.commit(ctx, s.treeCtx, s.queueCtx); err != nil {
		return batched.UpdateResult{}, err
	}
	p.logResult("batch append", s.tree, res)
	p.metrics.observeResult(res)
	return res, nil
}

func (p *Processor) logResult(what string, t *batched.TreeAccount, res batched.UpdateResult) {
	switch res.Status {
	case batched.UpdateApplied:
		ev := res.Event
		p.Log.Infof("%s %s: applied %s batch %d zkp batch %d, seq %d, next index %d -> %d",
			what, t.Pubkey(), ev.Kind, ev.BatchIndex, ev.ZkpBatchIndex, ev.SequenceNumber, ev.OldNextIndex, ev.NewNextIndex)
	case batched.UpdateDeferred:
		p.Log.Infof("%s %s: deferred, tree at seq %d with %d pending", what, t.Pubkey(), t.SequenceNumber(), t.Pending().Len())
	}
	if e := res.Superseded; e != nil {
		p.Log.Infof("%s %s: superseded pending batch %d zkp batch %d for seq %d",
			what, t.Pubkey(), e.BatchIndex, e.HashChainIndex, e.ExpectedSequenceNumber)
	}
	for _, ev := range res.Replayed {
		p.Log.Infof("%s %s: replayed %s batch %d zkp batch %d, seq %d",
			what, t.Pubkey(), ev.Kind, ev.BatchIndex, ev.ZkpBatchIndex, ev.SequenceNumber)
	}
	for _, d := range res.Dropped {
		p.Log.Infof("%s %s: dropped pending batch %d zkp batch %d for seq %d: %v",
			what, t.Pubkey(), d.Entry.BatchIndex, d.Entry.HashChainIndex, d.Entry.ExpectedSequenceNumber, d.Err)
	}
}
