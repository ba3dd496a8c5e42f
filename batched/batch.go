package batched

import (
	"encoding/binary"
	"fmt"

	"github.com/forestrie/go-batchedmerkle/bloom"
	"github.com/forestrie/go-batchedmerkle/hasher"
	"github.com/forestrie/go-batchedmerkle/zerocopy"
)

// BatchState is the lifecycle state of a batch slot.
type BatchState uint64

const (
	// BatchFill accepts new values.
	BatchFill BatchState = iota
	// BatchInserted has been fully applied to the tree. Its bloom filter is
	// kept until it is wiped.
	BatchInserted
	// BatchFull waits for proofs.
	BatchFull
)

func (s BatchState) String() string {
	switch s {
	case BatchFill:
		return "fill"
	case BatchInserted:
		return "inserted"
	case BatchFull:
		return "full"
	default:
		return fmt.Sprintf("BatchState(%d)", uint64(s))
	}
}

// Batch is one slot of a queue. Values are grouped into zkp batches of
// ZkpBatchSize, each covered by one hash chain and proven by one proof.
type Batch struct {
	// NumInserted counts values in the zkp batch currently being filled.
	NumInserted          uint64
	State                BatchState
	CurrentZkpBatchIndex uint64
	NumInsertedZkps      uint64
	NumIters             uint64
	BloomFilterCapacity  uint64
	BatchSize            uint64
	ZkpBatchSize         uint64
	// SequenceNumber is the tree sequence number after which the roots that
	// could prove values of this batch have left the root history. Zero
	// while the batch is not inserted.
	SequenceNumber     uint64
	StartIndex         uint64
	RootIndex          uint32
	BloomFilterIsWiped bool
}

// BatchBytes is the encoded size of a Batch.
const BatchBytes = 88

// NewBatch returns an empty batch in the Fill state.
func NewBatch(numIters, bloomFilterCapacity, batchSize, zkpBatchSize, startIndex uint64) Batch {
	return Batch{
		State:               BatchFill,
		NumIters:            numIters,
		BloomFilterCapacity: bloomFilterCapacity,
		BatchSize:           batchSize,
		ZkpBatchSize:        zkpBatchSize,
		StartIndex:          startIndex,
	}
}

func (b *Batch) NumZkpBatches() uint64 { return b.BatchSize / b.ZkpBatchSize }

// NumInsertedElements returns the number of values queued in the batch.
func (b *Batch) NumInsertedElements() uint64 {
	return b.CurrentZkpBatchIndex*b.ZkpBatchSize + b.NumInserted
}

// NumElementsInsertedIntoTree returns the number of values already applied.
func (b *Batch) NumElementsInsertedIntoTree() uint64 { return b.NumInsertedZkps * b.ZkpBatchSize }

// NumReadyZkpUpdates returns the number of complete zkp batches waiting for a
// proof.
func (b *Batch) NumReadyZkpUpdates() uint64 {
	if b.CurrentZkpBatchIndex < b.NumInsertedZkps {
		return 0
	}
	return b.CurrentZkpBatchIndex - b.NumInsertedZkps
}

func (b *Batch) IsReadyToInsert() bool { return b.CurrentZkpBatchIndex > b.NumInsertedZkps }

// FirstReadyZkpBatch returns the index of the next zkp batch to prove.
func (b *Batch) FirstReadyZkpBatch() (uint64, error) {
	if b.State == BatchInserted {
		return 0, ErrBatchAlreadyInserted
	}
	if !b.IsReadyToInsert() {
		return 0, ErrBatchNotReady
	}
	return b.NumInsertedZkps, nil
}

// AdvanceToFill reuses an inserted batch. startIndex, when not nil, sets the
// first leaf index of the reused batch.
func (b *Batch) AdvanceToFill(startIndex *uint64) error {
	if b.State != BatchInserted {
		return fmt.Errorf("%w: %v, expected %v", ErrBatchNotReady, b.State, BatchInserted)
	}
	b.State = BatchFill
	b.BloomFilterIsWiped = false
	b.SequenceNumber = 0
	b.RootIndex = 0
	b.NumInsertedZkps = 0
	if startIndex != nil {
		b.StartIndex = *startIndex
	}
	return nil
}

func (b *Batch) AdvanceToFull() error {
	if b.State != BatchFill {
		return fmt.Errorf("%w: %v, expected %v", ErrBatchNotReady, b.State, BatchFill)
	}
	b.State = BatchFull
	return nil
}

func (b *Batch) AdvanceToInserted() error {
	if b.State != BatchFull {
		return fmt.Errorf("%w: %v, expected %v", ErrBatchNotReady, b.State, BatchFull)
	}
	b.State = BatchInserted
	b.CurrentZkpBatchIndex = 0
	return nil
}

// AddToHashChain folds value into the hash chain of the current zkp batch
// and advances the zkp batch and batch state when they fill up.
func (b *Batch) AddToHashChain(h hasher.Hasher, value [32]byte, chains *zerocopy.Vec[[32]byte]) error {
	if b.State != BatchFill {
		return ErrBatchNotReady
	}
	chain, startNew, err := b.nextChain(h, value, chains)
	if err != nil {
		return err
	}
	return b.commitChain(chain, startNew, chains)
}

// nextChain computes the chain value after adding value without modifying
// anything.
func (b *Batch) nextChain(h hasher.Hasher, value [32]byte, chains *zerocopy.Vec[[32]byte]) ([32]byte, bool, error) {
	if b.NumInserted == 0 {
		if chains.IsFull() {
			return [32]byte{}, false, zerocopy.ErrCapacityExceeded
		}
		return value, true, nil
	}
	last, ok := chains.Last()
	if !ok {
		return [32]byte{}, false, fmt.Errorf("%w: missing hash chain for zkp batch %d", ErrInvalidHashChainIndex, b.CurrentZkpBatchIndex)
	}
	chain, err := hasher.Hash2(h, last, value)
	return chain, false, err
}

func (b *Batch) commitChain(chain [32]byte, startNew bool, chains *zerocopy.Vec[[32]byte]) error {
	var err error
	if startNew {
		err = chains.Push(chain)
	} else {
		err = chains.SetLast(chain)
	}
	if err != nil {
		return err
	}
	b.NumInserted++
	if b.NumInserted == b.ZkpBatchSize {
		b.CurrentZkpBatchIndex++
		b.NumInserted = 0
		if b.CurrentZkpBatchIndex == b.NumZkpBatches() {
			return b.AdvanceToFull()
		}
	}
	return nil
}

// StoreAndHashValue appends value to the value store and the hash chain.
// Used by output queues.
func (b *Batch) StoreAndHashValue(h hasher.Hasher, value [32]byte, values, chains *zerocopy.Vec[[32]byte]) error {
	if b.State != BatchFill {
		return ErrBatchNotReady
	}
	if values.IsFull() {
		return zerocopy.ErrCapacityExceeded
	}
	chain, startNew, err := b.nextChain(h, value, chains)
	if err != nil {
		return err
	}
	if err := values.Push(value); err != nil {
		return err
	}
	return b.commitChain(chain, startNew, chains)
}

// Insert adds bloomValue to this batch's filter and chainValue to its hash
// chain. The value is checked against every filter in others first, then
// against the own filter, so a rejected value leaves the batch unchanged.
func (b *Batch) Insert(h hasher.Hasher, bloomValue, chainValue [32]byte, filter []byte, others [][]byte, chains *zerocopy.Vec[[32]byte]) error {
	if b.State != BatchFill {
		return ErrBatchNotReady
	}
	for _, other := range others {
		if err := b.CheckNonInclusion(bloomValue, other); err != nil {
			return err
		}
	}
	if err := b.CheckNonInclusion(bloomValue, filter); err != nil {
		return err
	}
	chain, startNew, err := b.nextChain(h, chainValue, chains)
	if err != nil {
		return err
	}
	if err := bloom.InsertV1(filter, b.NumIters, bloomValue[:]); err != nil {
		return err
	}
	return b.commitChain(chain, startNew, chains)
}

// CheckNonInclusion fails with ErrNonInclusionCheckFailed if value may be in
// filter. Wiped filters are all zero and never match.
func (b *Batch) CheckNonInclusion(value [32]byte, filter []byte) error {
	maybe, err := bloom.MaybeContainsV1(filter, b.NumIters, value[:])
	if err != nil {
		return err
	}
	if maybe {
		return ErrNonInclusionCheckFailed
	}
	return nil
}

// MarkAsInserted records that the next ready zkp batch was applied to the
// tree. When it was the last one the batch moves to Inserted and remembers
// the sequence number at which its roots have left a history of
// rootHistoryCapacity entries.
func (b *Batch) MarkAsInserted(sequenceNumber uint64, rootIndex uint32, rootHistoryCapacity uint64) (BatchState, error) {
	if _, err := b.FirstReadyZkpBatch(); err != nil {
		return b.State, err
	}
	b.NumInsertedZkps++
	if b.NumInsertedZkps == b.NumZkpBatches() {
		if err := b.AdvanceToInserted(); err != nil {
			return b.State, err
		}
		b.SequenceNumber = sequenceNumber + rootHistoryCapacity
		b.RootIndex = rootIndex
	}
	return b.State, nil
}

// LeafIndexCouldExist reports whether leafIndex falls in the index range
// assigned to the batch.
func (b *Batch) LeafIndexCouldExist(leafIndex uint64) bool {
	return leafIndex >= b.StartIndex && leafIndex < b.StartIndex+b.NumZkpBatches()*b.ZkpBatchSize
}

// ValueIsInserted reports whether leafIndex was queued into the batch.
func (b *Batch) ValueIsInserted(leafIndex uint64) bool {
	return leafIndex >= b.StartIndex && leafIndex < b.StartIndex+b.NumInsertedElements()
}

// ValueIndex returns the position of leafIndex in the batch value store.
func (b *Batch) ValueIndex(leafIndex uint64) (uint64, error) {
	if !b.LeafIndexCouldExist(leafIndex) {
		return 0, fmt.Errorf("%w: %d", ErrLeafIndexNotInBatch, leafIndex)
	}
	return leafIndex - b.StartIndex, nil
}

type batchCodec struct{}

func (batchCodec) Size() int  { return BatchBytes }
func (batchCodec) Align() int { return 8 }

func (batchCodec) Decode(p []byte) Batch {
	w := words(p)
	return Batch{
		NumInserted:          w.get(0),
		State:                BatchState(w.get(1)),
		CurrentZkpBatchIndex: w.get(2),
		NumInsertedZkps:      w.get(3),
		NumIters:             w.get(4),
		BloomFilterCapacity:  w.get(5),
		BatchSize:            w.get(6),
		ZkpBatchSize:         w.get(7),
		SequenceNumber:       w.get(8),
		StartIndex:           w.get(9),
		RootIndex:            binary.LittleEndian.Uint32(p[80:]),
		BloomFilterIsWiped:   p[84] == 1,
	}
}

func (batchCodec) Encode(p []byte, b Batch) {
	w := words(p)
	w.set(0, b.NumInserted)
	w.set(1, uint64(b.State))
	w.set(2, b.CurrentZkpBatchIndex)
	w.set(3, b.NumInsertedZkps)
	w.set(4, b.NumIters)
	w.set(5, b.BloomFilterCapacity)
	w.set(6, b.BatchSize)
	w.set(7, b.ZkpBatchSize)
	w.set(8, b.SequenceNumber)
	w.set(9, b.StartIndex)
	binary.LittleEndian.PutUint32(p[80:], b.RootIndex)
	clear(p[84:88])
	if b.BloomFilterIsWiped {
		p[84] = 1
	}
}

var batchZC zerocopy.Codec[Batch] = batchCodec{}
