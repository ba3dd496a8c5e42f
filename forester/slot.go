package forester

import (
	"fmt"

	"github.com/forestrie/go-batchedmerkle/batched"
)

// Slot names one zkp batch of an input queue and the sequence number the
// tree will be at when its update applies.
type Slot struct {
	BatchIndex             uint64
	ZkpBatchIndex          uint64
	ExpectedSequenceNumber uint64
}

// NextSlot returns the slot the tree applies next.
func NextSlot(t *batched.TreeAccount) (Slot, error) {
	i := t.BatchMetadata().NextFullBatchIndex()
	b, err := t.Batch(i)
	if err != nil {
		return Slot{}, err
	}
	if b.State == batched.BatchInserted {
		return Slot{}, fmt.Errorf("%w: batch %d is inserted", batched.ErrBatchNotReady, i)
	}
	return Slot{
		BatchIndex:             i,
		ZkpBatchIndex:          b.NumInsertedZkps,
		ExpectedSequenceNumber: t.SequenceNumber(),
	}, nil
}

// Next returns the slot following s.
func (s Slot) Next(m batched.BatchMetadata) Slot {
	s.ExpectedSequenceNumber++
	s.ZkpBatchIndex++
	if s.ZkpBatchIndex == m.NumZkpBatches() {
		s.ZkpBatchIndex = 0
		s.BatchIndex = (s.BatchIndex + 1) % m.NumBatches()
	}
	return s
}

// checkReady fails unless the zkp batch of s is complete and not inserted.
func (s Slot) checkReady(t *batched.TreeAccount) error {
	b, err := t.Batch(s.BatchIndex)
	if err != nil {
		return err
	}
	if b.State == batched.BatchInserted || s.ZkpBatchIndex < b.NumInsertedZkps {
		return fmt.Errorf("%w: batch %d zkp batch %d", batched.ErrStaleChangelogEntry, s.BatchIndex, s.ZkpBatchIndex)
	}
	if s.ZkpBatchIndex >= b.CurrentZkpBatchIndex {
		return fmt.Errorf("%w: batch %d zkp batch %d", batched.ErrBatchNotReady, s.BatchIndex, s.ZkpBatchIndex)
	}
	return nil
}
