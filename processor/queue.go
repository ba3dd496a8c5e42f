package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/forestrie/go-batchedmerkle/accountstore"
	"github.com/forestrie/go-batchedmerkle/batched"
)

// SpentLeaf is a state tree leaf being nullified.
type SpentLeaf struct {
	AccountHash [32]byte
	LeafIndex   uint64
	TxHash      [32]byte
	// ProveByIndex requires the leaf to still be in the output queue.
	ProveByIndex bool
}

// InsertNullifiers queues a nullifier for every leaf. A leaf still in the
// output queue is zeroed there, the queue is then committed after the
// tree.
func (p *Processor) InsertNullifiers(ctx context.Context, treeKey batched.Pubkey, leaves []SpentLeaf) (err error) {
	start := time.Now()
	defer func() { p.metrics.observe("insert_nullifiers", start, err) }()

	s, err := p.readStateTree(ctx, treeKey)
	if err != nil {
		return err
	}
	if err = s.queue.CheckIsAssociated(treeKey); err != nil {
		return err
	}
	zeroed := 0
	for _, l := range leaves {
		queued, err := s.queue.ProveInclusionByIndex(l.LeafIndex, l.AccountHash)
		if err != nil {
			return err
		}
		if l.ProveByIndex && !queued {
			return fmt.Errorf("%w: leaf %d is not in the output queue", batched.ErrInclusionByIndexFailed, l.LeafIndex)
		}
		if queued {
			if err := s.queue.ProveInclusionByIndexAndZeroOutLeaf(l.LeafIndex, l.AccountHash); err != nil {
				return err
			}
			zeroed++
		}
		if err := s.tree.InsertNullifierIntoCurrentBatch(l.AccountHash, l.LeafIndex, l.TxHash); err != nil {
			return fmt.Errorf("leaf %d: %w", l.LeafIndex, err)
		}
	}

	acs := []*accountstore.AccountContext{s.treeCtx}
	if zeroed > 0 {
		acs = append(acs, s.queueCtx)
	}
	if err = p.commit(ctx, acs...); err != nil {
		return err
	}
	p.metrics.queuedTotal.WithLabelValues("nullifier").Add(float64(len(leaves)))
	p.Log.Debugf("queued %d nullifiers for %s, %d spent from the output queue, %d pending",
		len(leaves), treeKey, zeroed, s.tree.NumPendingElements())
	return nil
}

// InsertAddresses queues new addresses into an address tree.
func (p *Processor) InsertAddresses(ctx context.Context, treeKey batched.Pubkey, addresses [][32]byte) (err error) {
	start := time.Now()
	defer func() { p.metrics.observe("insert_addresses", start, err) }()

	ac, t, err := p.readAddressTree(ctx, treeKey)
	if err != nil {
		return err
	}
	for _, a := range addresses {
		if err := t.InsertAddressIntoCurrentBatch(a); err != nil {
			return fmt.Errorf("address %x: %w", a, err)
		}
	}
	if err = p.commit(ctx, ac); err != nil {
		return err
	}
	p.metrics.queuedTotal.WithLabelValues("address").Add(float64(len(addresses)))
	p.Log.Debugf("queued %d addresses for %s, %d pending", len(addresses), treeKey, t.NumPendingElements())
	return nil
}

// InsertLeaves queues new leaves into the output queue of a state tree.
// Only the queue is written.
func (p *Processor) InsertLeaves(ctx context.Context, treeKey batched.Pubkey, leaves [][32]byte) (first uint64, err error) {
	start := time.Now()
	defer func() { p.metrics.observe("insert_leaves", start, err) }()

	s, err := p.readStateTree(ctx, treeKey)
	if err != nil {
		return 0, err
	}
	if s.tree.IsRolledOver() {
		return 0, batched.ErrMerkleTreeAlreadyRolledOver
	}
	first = s.queue.NextIndex()
	for _, leaf := range leaves {
		if err := s.queue.InsertIntoCurrentBatch(leaf); err != nil {
			return 0, err
		}
	}
	if err = p.commit(ctx, s.queueCtx); err != nil {
		return 0, err
	}
	p.metrics.queuedTotal.WithLabelValues("leaf").Add(float64(len(leaves)))
	p.Log.Debugf("queued %d leaves for %s from index %d", len(leaves), treeKey, first)
	return first, nil
}
