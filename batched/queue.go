package batched

import (
	"fmt"

	"github.com/forestrie/go-batchedmerkle/bloom"
	"github.com/forestrie/go-batchedmerkle/hasher"
	"github.com/forestrie/go-batchedmerkle/zerocopy"
)

// BatchMetadataBytes is the encoded size of the queue geometry and cursors.
const BatchMetadataBytes = 48

const (
	bmNumBatches = iota
	bmBatchSize
	bmZkpBatchSize
	bmBloomFilterCapacity
	bmCurrentlyProcessing
	bmNextFullBatch
)

// BatchMetadata is a view of the queue geometry and the two batch cursors:
// the batch currently filled and the next batch to be applied to the tree.
type BatchMetadata struct {
	w words
}

func (m BatchMetadata) NumBatches() uint64          { return m.w.get(bmNumBatches) }
func (m BatchMetadata) BatchSize() uint64           { return m.w.get(bmBatchSize) }
func (m BatchMetadata) ZkpBatchSize() uint64        { return m.w.get(bmZkpBatchSize) }
func (m BatchMetadata) BloomFilterCapacity() uint64 { return m.w.get(bmBloomFilterCapacity) }
func (m BatchMetadata) NumZkpBatches() uint64       { return m.BatchSize() / m.ZkpBatchSize() }

func (m BatchMetadata) CurrentlyProcessingBatchIndex() uint64 { return m.w.get(bmCurrentlyProcessing) }
func (m BatchMetadata) NextFullBatchIndex() uint64            { return m.w.get(bmNextFullBatch) }

func (m BatchMetadata) init(numBatches, batchSize, zkpBatchSize, bloomFilterCapacity uint64) {
	clear(m.w[:BatchMetadataBytes])
	m.w.set(bmNumBatches, numBatches)
	m.w.set(bmBatchSize, batchSize)
	m.w.set(bmZkpBatchSize, zkpBatchSize)
	m.w.set(bmBloomFilterCapacity, bloomFilterCapacity)
}

func (m BatchMetadata) check(withFilters bool) error {
	if m.NumBatches() == 0 || m.BatchSize() == 0 || m.ZkpBatchSize() == 0 {
		return fmt.Errorf("%w: zero queue dimension", ErrInvalidParams)
	}
	if m.BatchSize()%m.ZkpBatchSize() != 0 {
		return ErrBatchSizeNotDivisible
	}
	if withFilters {
		if err := bloom.CheckCapacityV1(m.BloomFilterCapacity()); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
	}
	return nil
}

// queueLayout selects the optional per batch regions of a queue.
type queueLayout struct {
	filters bool
	values  bool
}

var (
	inputQueueLayout  = queueLayout{filters: true}
	outputQueueLayout = queueLayout{values: true}
)

func queueBytes(l queueLayout, numBatches, batchSize, zkpBatchSize, bloomFilterCapacity uint64) uint64 {
	n := zerocopy.SliceBytes(numBatches, BatchBytes)
	if l.values {
		n += numBatches * zerocopy.VecBytes(batchSize, hasher.HashBytes)
	}
	if l.filters {
		n += numBatches * zerocopy.SliceBytes(bloom.BitsetBytesV1(bloomFilterCapacity), 1)
	}
	n += numBatches * zerocopy.VecBytes(batchSize/zkpBatchSize, hasher.HashBytes)
	return n
}

// queue is the batch, bloom filter, value and hash chain regions shared by
// input and output queues.
type queue struct {
	h       hasher.Hasher
	meta    BatchMetadata
	batches *zerocopy.Slice[Batch]
	values  []*zerocopy.Vec[[32]byte]
	filters []*zerocopy.Slice[byte]
	chains  []*zerocopy.Vec[[32]byte]
}

// rootZeroing asks the tree to zero roots that could still prove values of
// a batch whose bloom filter was wiped.
type rootZeroing struct {
	sequenceNumber uint64
	rootIndex      uint32
}

func newQueueAt(buf []byte, h hasher.Hasher, meta BatchMetadata, l queueLayout, numIters, startIndex uint64) (*queue, []byte, error) {
	q := &queue{h: h, meta: meta}
	n := meta.NumBatches()
	var err error
	if q.batches, buf, err = zerocopy.NewSliceAt(buf, n, batchZC); err != nil {
		return nil, nil, err
	}
	for i := uint64(0); i < n; i++ {
		b := NewBatch(numIters, meta.BloomFilterCapacity(), meta.BatchSize(), meta.ZkpBatchSize(), meta.BatchSize()*i+startIndex)
		if err := q.batches.Set(i, b); err != nil {
			return nil, nil, err
		}
	}
	if l.values {
		q.values = make([]*zerocopy.Vec[[32]byte], n)
		for i := range q.values {
			if q.values[i], buf, err = zerocopy.NewVecAt(buf, meta.BatchSize(), zerocopy.Bytes32); err != nil {
				return nil, nil, err
			}
		}
	}
	if l.filters {
		q.filters = make([]*zerocopy.Slice[byte], n)
		for i := range q.filters {
			if q.filters[i], buf, err = zerocopy.NewSliceAt(buf, bloom.BitsetBytesV1(meta.BloomFilterCapacity()), zerocopy.Byte); err != nil {
				return nil, nil, err
			}
		}
	}
	q.chains = make([]*zerocopy.Vec[[32]byte], n)
	for i := range q.chains {
		if q.chains[i], buf, err = zerocopy.NewVecAt(buf, meta.NumZkpBatches(), zerocopy.Bytes32); err != nil {
			return nil, nil, err
		}
	}
	return q, buf, nil
}

func openQueueAt(buf []byte, h hasher.Hasher, meta BatchMetadata, l queueLayout) (*queue, []byte, error) {
	q := &queue{h: h, meta: meta}
	var err error
	if q.batches, buf, err = zerocopy.SliceFromBytesAt(buf, batchZC); err != nil {
		return nil, nil, err
	}
	n := meta.NumBatches()
	if q.batches.Len() != n {
		return nil, nil, fmt.Errorf("%w: %d batches, metadata says %d", zerocopy.ErrInvalidConversion, q.batches.Len(), n)
	}
	if l.values {
		q.values = make([]*zerocopy.Vec[[32]byte], n)
		for i := range q.values {
			if q.values[i], buf, err = zerocopy.VecFromBytesAt(buf, zerocopy.Bytes32); err != nil {
				return nil, nil, err
			}
		}
	}
	if l.filters {
		q.filters = make([]*zerocopy.Slice[byte], n)
		for i := range q.filters {
			if q.filters[i], buf, err = zerocopy.SliceFromBytesAt(buf, zerocopy.Byte); err != nil {
				return nil, nil, err
			}
		}
	}
	q.chains = make([]*zerocopy.Vec[[32]byte], n)
	for i := range q.chains {
		if q.chains[i], buf, err = zerocopy.VecFromBytesAt(buf, zerocopy.Bytes32); err != nil {
			return nil, nil, err
		}
	}
	return q, buf, nil
}

// Batch returns a copy of batch i.
func (q *queue) Batch(i uint64) (Batch, error) {
	b, ok := q.batches.Get(i)
	if !ok {
		return Batch{}, fmt.Errorf("%w: %d", ErrInvalidBatchIndex, i)
	}
	return b, nil
}

func (q *queue) putBatch(i uint64, b Batch) error { return q.batches.Set(i, b) }

// HashChain returns the hash chain of zkp batch zkpIndex of batch i.
func (q *queue) HashChain(i, zkpIndex uint64) ([32]byte, error) {
	if i >= uint64(len(q.chains)) {
		return [32]byte{}, fmt.Errorf("%w: %d", ErrInvalidBatchIndex, i)
	}
	c, ok := q.chains[i].Get(zkpIndex)
	if !ok {
		return [32]byte{}, fmt.Errorf("%w: batch %d zkp batch %d", ErrInvalidHashChainIndex, i, zkpIndex)
	}
	return c, nil
}

func (q *queue) filter(i uint64) []byte { return q.filters[i].Raw() }

func (q *queue) otherFilters(i uint64) [][]byte {
	if len(q.filters) == 0 {
		return nil
	}
	out := make([][]byte, 0, len(q.filters)-1)
	for j := range q.filters {
		if uint64(j) != i {
			out = append(out, q.filters[j].Raw())
		}
	}
	return out
}

// CheckNonInclusion fails if value may be in any bloom filter of the queue.
func (q *queue) CheckNonInclusion(value [32]byte) error {
	for i := range q.filters {
		b, err := q.Batch(uint64(i))
		if err != nil {
			return err
		}
		if b.BloomFilterIsWiped {
			continue
		}
		if err := b.CheckNonInclusion(value, q.filter(uint64(i))); err != nil {
			return fmt.Errorf("%w: batch %d", err, i)
		}
	}
	return nil
}

// NumPendingElements returns the number of queued values not yet applied to
// the tree.
func (q *queue) NumPendingElements() uint64 {
	var n uint64
	for i := uint64(0); i < q.batches.Len(); i++ {
		b, _ := q.batches.Get(i)
		if b.State == BatchInserted {
			continue
		}
		n += b.NumInsertedElements() - b.NumElementsInsertedIntoTree()
	}
	return n
}

func (q *queue) checkValue(v [32]byte) error {
	if q.h.Kind() == hasher.KindPoseidon && !hasher.IsInField(v) {
		return ErrValueOutOfField
	}
	return nil
}

// insert adds a value to the batch currently being filled. bloomValue is
// only used by queues with bloom filters. startIndex sets the first leaf
// index of a reused batch.
//
// An inserted batch is reused on the first insert after it was applied:
// its stores are cleared, and if its bloom filter was not wiped yet it is
// wiped here. A non nil rootZeroing must be applied by the tree even when
// an error is returned.
func (q *queue) insert(bloomValue, chainValue [32]byte, startIndex *uint64) (*rootZeroing, error) {
	if err := q.checkValue(chainValue); err != nil {
		return nil, err
	}
	cur := q.meta.CurrentlyProcessingBatchIndex()
	b, err := q.Batch(cur)
	if err != nil {
		return nil, err
	}
	if b.State == BatchFull {
		return nil, fmt.Errorf("%w: batch %d", ErrQueueFull, cur)
	}

	others := q.otherFilters(cur)
	var zero *rootZeroing
	reused := b.State == BatchInserted
	if reused {
		for _, f := range others {
			if err := b.CheckNonInclusion(bloomValue, f); err != nil {
				return nil, err
			}
		}
		if len(q.filters) != 0 && !b.BloomFilterIsWiped {
			bloom.WipeV1(q.filter(cur))
			if b.SequenceNumber != 0 {
				zero = &rootZeroing{sequenceNumber: b.SequenceNumber, rootIndex: b.RootIndex}
			}
		}
		if err := b.AdvanceToFill(startIndex); err != nil {
			return nil, err
		}
		if q.values != nil {
			q.values[cur].Clear()
		}
		q.chains[cur].Clear()
	}

	if q.filters != nil {
		err = b.Insert(q.h, bloomValue, chainValue, q.filter(cur), others, q.chains[cur])
	} else {
		err = b.StoreAndHashValue(q.h, chainValue, q.values[cur], q.chains[cur])
	}
	if err != nil {
		if reused {
			// the stores were already cleared
			_ = q.putBatch(cur, b)
		}
		return zero, err
	}
	if err := q.putBatch(cur, b); err != nil {
		return zero, err
	}
	if b.State == BatchFull {
		q.meta.w.set(bmCurrentlyProcessing, (cur+1)%q.meta.NumBatches())
	}
	return zero, nil
}
