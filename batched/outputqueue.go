package batched

import (
	"fmt"

	"github.com/forestrie/go-batchedmerkle/hasher"
	"github.com/forestrie/go-batchedmerkle/zerocopy"
)

// QueueTypeOutput marks an output queue in QueueMetadata.
const QueueTypeOutput uint64 = 2

const (
	qhNextIndex = BatchMetadataBytes/8 + iota
	qhTreeCapacity
	qhHasher
)

// OutputQueue is a view of an output queue account. New state tree leaves
// are stored here, in batches, until a batch append proof moves them into
// the associated tree.
type OutputQueue struct {
	pubkey Pubkey
	h      hasher.Hasher
	meta   []byte
	header words
	queue  *queue
}

// BatchAppend submits a proof appending the next ready zkp batch of an
// output queue.
type BatchAppend struct {
	OldRoot                [32]byte
	NewRoot                [32]byte
	HashChain              [32]byte
	ExpectedSequenceNumber uint64
	Proof                  CompressedProof
}

func initOutputQueue(buf []byte, pubkey Pubkey, h hasher.Hasher, m QueueMetadata, p TreeParams, treeCapacity uint64) (*OutputQueue, error) {
	if err := zerocopy.CheckSize(buf, p.OutputQueueBytes()); err != nil {
		return nil, err
	}
	copy(buf[:DiscriminatorBytes], OutputQueueDiscriminator[:])
	rest := buf[DiscriminatorBytes:]

	q := &OutputQueue{pubkey: pubkey, h: h, meta: rest[:QueueMetadataBytes]}
	encodeQueueMetadata(q.meta, m)
	rest = rest[QueueMetadataBytes:]

	q.header = words(rest[:QueueHeaderBytes])
	clear(q.header)
	bm := BatchMetadata{w: q.header}
	bm.init(p.OutputQueueNumBatches, p.OutputQueueBatchSize, p.OutputQueueZkpBatchSize, 0)
	q.header.set(qhTreeCapacity, treeCapacity)
	q.header.set(qhHasher, uint64(h.Kind()))
	rest = rest[QueueHeaderBytes:]

	var err error
	if q.queue, _, err = newQueueAt(rest, h, bm, outputQueueLayout, 0, 0); err != nil {
		return nil, err
	}
	return q, nil
}

// OpenOutputQueue re-opens an output queue account.
func OpenOutputQueue(buf []byte, pubkey Pubkey) (*OutputQueue, error) {
	if err := zerocopy.CheckSize(buf, DiscriminatorBytes+QueueMetadataBytes+QueueHeaderBytes); err != nil {
		return nil, err
	}
	var disc [DiscriminatorBytes]byte
	copy(disc[:], buf)
	if disc != OutputQueueDiscriminator {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDiscriminator, disc[:])
	}
	rest := buf[DiscriminatorBytes:]
	q := &OutputQueue{pubkey: pubkey, meta: rest[:QueueMetadataBytes]}
	if qt := q.Metadata().QueueType; qt != QueueTypeOutput {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQueueType, qt)
	}
	rest = rest[QueueMetadataBytes:]
	q.header = words(rest[:QueueHeaderBytes])
	rest = rest[QueueHeaderBytes:]

	var err error
	if q.h, err = hasher.New(hasher.Kind(q.header.get(qhHasher))); err != nil {
		return nil, fmt.Errorf("%w: %v", zerocopy.ErrInvalidConversion, err)
	}
	bm := q.BatchMetadata()
	if err := bm.check(false); err != nil {
		return nil, err
	}
	if err := zerocopy.CheckSize(buf, OutputQueueBytes(bm.BatchSize(), bm.ZkpBatchSize(), bm.NumBatches())); err != nil {
		return nil, err
	}
	if q.queue, _, err = openQueueAt(rest, q.h, bm, outputQueueLayout); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *OutputQueue) Pubkey() Pubkey               { return q.pubkey }
func (q *OutputQueue) NextIndex() uint64            { return q.header.get(qhNextIndex) }
func (q *OutputQueue) TreeCapacity() uint64         { return q.header.get(qhTreeCapacity) }
func (q *OutputQueue) BatchMetadata() BatchMetadata { return BatchMetadata{w: q.header} }
func (q *OutputQueue) Metadata() QueueMetadata      { return decodeQueueMetadata(q.meta) }

func (q *OutputQueue) setMetadata(m QueueMetadata) { encodeQueueMetadata(q.meta, m) }

func (q *OutputQueue) IsRolledOver() bool { return decodeOption(q.meta[96+34:]) != nil }

// Batch returns a copy of batch i.
func (q *OutputQueue) Batch(i uint64) (Batch, error) { return q.queue.Batch(i) }

// HashChain returns the hash chain of zkp batch zkpIndex of batch i.
func (q *OutputQueue) HashChain(i, zkpIndex uint64) ([32]byte, error) {
	return q.queue.HashChain(i, zkpIndex)
}

// Values returns a copy of the values stored in batch i.
func (q *OutputQueue) Values(i uint64) ([][32]byte, error) {
	if i >= uint64(len(q.queue.values)) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchIndex, i)
	}
	return q.queue.values[i].Slice(), nil
}

// NumPendingElements returns the number of values not yet appended to the
// tree.
func (q *OutputQueue) NumPendingElements() uint64 { return q.queue.NumPendingElements() }

func (q *OutputQueue) IsAssociated(tree Pubkey) bool {
	return q.Metadata().AssociatedMerkleTree == tree
}

func (q *OutputQueue) CheckIsAssociated(tree Pubkey) error {
	if !q.IsAssociated(tree) {
		return fmt.Errorf("%w: queue %s, tree %s", ErrNotAssociated, q.pubkey, tree)
	}
	return nil
}

// InsertIntoCurrentBatch queues a new leaf. Its leaf index is the queue
// next index.
func (q *OutputQueue) InsertIntoCurrentBatch(value [32]byte) error {
	if q.IsRolledOver() {
		return ErrMerkleTreeAlreadyRolledOver
	}
	idx := q.NextIndex()
	if idx >= q.TreeCapacity() {
		return ErrTreeFull
	}
	if _, err := q.queue.insert(value, value, &idx); err != nil {
		return err
	}
	q.header.set(qhNextIndex, idx+1)
	return nil
}

// ProveInclusionByIndex reports whether leafIndex is still in the queue.
// It fails with ErrInclusionByIndexFailed if the queued value differs.
func (q *OutputQueue) ProveInclusionByIndex(leafIndex uint64, value [32]byte) (bool, error) {
	i, pos, ok, err := q.locate(leafIndex)
	if err != nil || !ok {
		return false, err
	}
	v, _ := q.queue.values[i].Get(pos)
	if v != value {
		return false, fmt.Errorf("%w: leaf %d", ErrInclusionByIndexFailed, leafIndex)
	}
	return true, nil
}

// ProveInclusionByIndexAndZeroOutLeaf zeroes a queued value, spending it
// before it reaches the tree. A leaf index not in the queue is not an error.
func (q *OutputQueue) ProveInclusionByIndexAndZeroOutLeaf(leafIndex uint64, value [32]byte) error {
	i, pos, ok, err := q.locate(leafIndex)
	if err != nil || !ok {
		return err
	}
	v, _ := q.queue.values[i].Get(pos)
	if v != value {
		return fmt.Errorf("%w: leaf %d", ErrInclusionByIndexFailed, leafIndex)
	}
	return q.queue.values[i].Set(pos, [32]byte{})
}

func (q *OutputQueue) locate(leafIndex uint64) (uint64, uint64, bool, error) {
	for i := uint64(0); i < q.queue.batches.Len(); i++ {
		b, err := q.queue.Batch(i)
		if err != nil {
			return 0, 0, false, err
		}
		if !b.ValueIsInserted(leafIndex) {
			continue
		}
		pos, err := b.ValueIndex(leafIndex)
		if err != nil {
			return 0, 0, false, err
		}
		return i, pos, true, nil
	}
	return 0, 0, false, nil
}

// UpdateOutputQueue verifies a batch append proof for the next ready zkp
// batch of q and appends it to the tree. Appends are never deferred: a
// stale root or sequence number fails with ErrRootMismatch or
// ErrSequenceMismatch. Pending input queue updates are replayed afterwards.
func (t *TreeAccount) UpdateOutputQueue(q *OutputQueue, u BatchAppend, v ProofVerifier) (UpdateResult, error) {
	if err := t.checkWritable(); err != nil {
		return UpdateResult{}, err
	}
	if err := t.checkType(TreeTypeState); err != nil {
		return UpdateResult{}, err
	}
	if err := q.CheckIsAssociated(t.pubkey); err != nil {
		return UpdateResult{}, err
	}
	if t.Metadata().AssociatedQueue != q.pubkey {
		return UpdateResult{}, fmt.Errorf("%w: tree %s, queue %s", ErrNotAssociated, t.pubkey, q.pubkey)
	}

	qm := q.BatchMetadata()
	batchIndex := qm.NextFullBatchIndex()
	b, err := q.queue.Batch(batchIndex)
	if err != nil {
		return UpdateResult{}, err
	}
	zkpIndex, err := b.FirstReadyZkpBatch()
	if err != nil {
		return UpdateResult{}, err
	}
	chain, err := q.queue.HashChain(batchIndex, zkpIndex)
	if err != nil {
		return UpdateResult{}, err
	}
	if chain != u.HashChain {
		return UpdateResult{}, ErrHashChainMismatch
	}

	seq := t.SequenceNumber()
	switch {
	case u.ExpectedSequenceNumber < seq:
		return UpdateResult{}, fmt.Errorf("%w: expected sequence number %d, current %d", ErrStaleChangelogEntry, u.ExpectedSequenceNumber, seq)
	case u.ExpectedSequenceNumber != seq:
		return UpdateResult{}, fmt.Errorf("%w: expected %d, current %d", ErrSequenceMismatch, u.ExpectedSequenceNumber, seq)
	case u.OldRoot != t.Root():
		return UpdateResult{}, ErrRootMismatch
	}

	zkp := qm.ZkpBatchSize()
	oldNext := t.NextIndex()
	if oldNext+zkp > t.Capacity() {
		return UpdateResult{}, ErrTreeFull
	}
	pih, err := AppendPublicInput(t.h, u.OldRoot, u.NewRoot, chain, oldNext)
	if err != nil {
		return UpdateResult{}, err
	}
	if err := verify(v, CircuitBatchAppend, zkp, pih, u.Proof); err != nil {
		return UpdateResult{}, err
	}

	newSeq := seq + 1
	rootIndex := t.nextRootSlot()
	state, err := b.MarkAsInserted(newSeq, uint32(rootIndex), t.RootHistoryCapacity())
	if err != nil {
		return UpdateResult{}, err
	}
	if err := q.queue.putBatch(batchIndex, b); err != nil {
		return UpdateResult{}, err
	}
	if state == BatchInserted {
		qm.w.set(bmNextFullBatch, (batchIndex+1)%qm.NumBatches())
	}
	t.roots.Push(u.NewRoot)
	t.header.set(thSequenceNumber, newSeq)
	t.header.set(thNextIndex, oldNext+zkp)

	ev := Event{
		Kind:           EventBatchAppend,
		MerkleTree:     t.pubkey,
		OutputQueue:    q.pubkey,
		BatchIndex:     batchIndex,
		ZkpBatchIndex:  zkpIndex,
		BatchSize:      zkp,
		OldNextIndex:   oldNext,
		NewNextIndex:   oldNext + zkp,
		NewRoot:        u.NewRoot,
		RootIndex:      rootIndex,
		SequenceNumber: newSeq,
	}
	replayed, dropped := t.replayPending()
	return UpdateResult{Status: UpdateApplied, Event: &ev, Replayed: replayed, Dropped: dropped}, nil
}
