package batched

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/forestrie/go-batchedmerkle/bloom"
	"github.com/forestrie/go-batchedmerkle/hasher"
	"github.com/forestrie/go-batchedmerkle/indexedarray"
	"github.com/forestrie/go-batchedmerkle/zerocopy"
)

const (
	DiscriminatorBytes = 8
	TreeHeaderBytes    = thFields*8 + BatchMetadataBytes
	QueueHeaderBytes   = BatchMetadataBytes + 3*8
)

var (
	StateTreeDiscriminator   = [DiscriminatorBytes]byte{'B', 'a', 't', 'c', 'h', 'M', 't', 'a'}
	AddressTreeDiscriminator = [DiscriminatorBytes]byte{'B', 'a', 't', 'c', 'h', 'A', 'd', 'r'}
	OutputQueueDiscriminator = [DiscriminatorBytes]byte{'q', 'u', 'e', 'u', 'e', 'a', 'c', 'c'}
)

// TreeType distinguishes state trees, whose input queue holds nullifiers,
// from address trees, whose input queue holds new addresses.
type TreeType uint64

const (
	TreeTypeState TreeType = iota + 1
	TreeTypeAddress
)

func (t TreeType) String() string {
	switch t {
	case TreeTypeState:
		return "state"
	case TreeTypeAddress:
		return "address"
	default:
		return fmt.Sprintf("TreeType(%d)", uint64(t))
	}
}

func (t TreeType) discriminator() [DiscriminatorBytes]byte {
	if t == TreeTypeAddress {
		return AddressTreeDiscriminator
	}
	return StateTreeDiscriminator
}

const (
	thTreeType = iota
	thSequenceNumber
	thNextIndex
	thHeight
	thRootHistoryCapacity
	thCapacity
	thHasher
	thFields
)

// TreeAccount is a view of a batched merkle tree account: root history,
// input queue and pending changelog. The tree itself is kept off chain,
// each zkp batch moves the root to the new root its proof attests to.
type TreeAccount struct {
	pubkey  Pubkey
	h       hasher.Hasher
	meta    []byte
	header  words
	roots   *zerocopy.CyclicVec[[32]byte]
	queue   *queue
	pending *PendingChangelog
}

// UpdateStatus reports whether a batch update moved the root.
type UpdateStatus uint8

const (
	UpdateApplied UpdateStatus = iota + 1
	UpdateDeferred
)

func (s UpdateStatus) String() string {
	switch s {
	case UpdateApplied:
		return "applied"
	case UpdateDeferred:
		return "deferred"
	default:
		return fmt.Sprintf("UpdateStatus(%d)", uint8(s))
	}
}

// UpdateResult is the outcome of a verified batch update.
type UpdateResult struct {
	Status UpdateStatus
	// Event is set when the update itself was applied.
	Event *Event
	// Superseded is the earlier pending entry for the same slot replaced by
	// a deferred update.
	Superseded *PendingEntry
	// Replayed lists pending updates applied after this one.
	Replayed []Event
	// Dropped lists pending updates that can no longer apply.
	Dropped []DroppedEntry
}

// BatchUpdate submits a proof for one zkp batch of the input queue.
type BatchUpdate struct {
	OldRoot                [32]byte
	NewRoot                [32]byte
	HashChain              [32]byte
	BatchIndex             uint64
	HashChainIndex         uint64
	ExpectedSequenceNumber uint64
	Proof                  CompressedProof
}

func (u BatchUpdate) entry() PendingEntry {
	return PendingEntry{
		OldRoot:                u.OldRoot,
		NewRoot:                u.NewRoot,
		HashChain:              u.HashChain,
		HashChainIndex:         u.HashChainIndex,
		BatchIndex:             u.BatchIndex,
		ExpectedSequenceNumber: u.ExpectedSequenceNumber,
	}
}

// AddressTreeInitRoot returns the root of an address tree holding only the
// zero element and the HighestAddressPlusOne sentinel.
func AddressTreeInitRoot(h hasher.Hasher, height uint32) ([32]byte, error) {
	if height == 0 || height > MaxHeight {
		return [32]byte{}, fmt.Errorf("%w: height %d", ErrInvalidParams, height)
	}
	var zero uint256.Int
	highest := indexedarray.HighestAddressPlusOne
	low, err := indexedarray.LeafHash(h, &zero, 1, &highest)
	if err != nil {
		return [32]byte{}, err
	}
	high, err := indexedarray.LeafHash(h, &highest, 0, &zero)
	if err != nil {
		return [32]byte{}, err
	}
	zeros, err := hasher.ZeroBytes(h)
	if err != nil {
		return [32]byte{}, err
	}
	node, err := hasher.Hash2(h, low, high)
	if err != nil {
		return [32]byte{}, err
	}
	for level := uint32(1); level < height; level++ {
		if node, err = hasher.Hash2(h, node, zeros[level]); err != nil {
			return [32]byte{}, err
		}
	}
	return node, nil
}

func (p TreeParams) treeMetadata(associatedQueue Pubkey, rolloverFee uint64) TreeMetadata {
	return TreeMetadata{
		Access: AccessMetadata{Owner: p.Owner, ProgramOwner: p.ProgramOwner, Forester: p.Forester},
		Rollover: RolloverMetadata{
			Index:             p.Index,
			RolloverFee:       rolloverFee,
			RolloverThreshold: p.RolloverThreshold,
			NetworkFee:        p.NetworkFee,
			CloseThreshold:    p.CloseThreshold,
			AdditionalBytes:   p.AdditionalBytes,
		},
		AssociatedQueue: associatedQueue,
	}
}

// InitAddressTree initializes an address tree account in buf. rent is the
// account rent the rollover fee is computed from.
func InitAddressTree(buf []byte, pubkey Pubkey, p TreeParams, rent uint64) (*TreeAccount, error) {
	if err := p.Validate(false); err != nil {
		return nil, err
	}
	var fee uint64
	if p.RolloverThreshold != nil {
		var err error
		if fee, err = RolloverFee(p.Height, *p.RolloverThreshold, rent); err != nil {
			return nil, err
		}
	}
	h, err := hasher.New(p.Hasher)
	if err != nil {
		return nil, err
	}
	root, err := AddressTreeInitRoot(h, p.Height)
	if err != nil {
		return nil, err
	}
	return initTree(buf, pubkey, TreeTypeAddress, p, p.treeMetadata(Pubkey{}, fee), AddressTreeInitNextIndex, root)
}

// InitStateTree initializes a state tree in treeBuf and its output queue in
// queueBuf. The output queue carries the rollover fee for both accounts.
func InitStateTree(treeBuf, queueBuf []byte, treeKey, queueKey Pubkey, p TreeParams, treeRent, queueRent uint64) (*TreeAccount, *OutputQueue, error) {
	if err := p.Validate(true); err != nil {
		return nil, nil, err
	}
	var fee uint64
	if p.RolloverThreshold != nil {
		var err error
		if fee, err = RolloverFee(p.Height, *p.RolloverThreshold, treeRent+queueRent); err != nil {
			return nil, nil, err
		}
	}
	h, err := hasher.New(p.Hasher)
	if err != nil {
		return nil, nil, err
	}
	root, err := hasher.ZeroRoot(h, p.Height)
	if err != nil {
		return nil, nil, err
	}
	if err := zerocopy.CheckSize(queueBuf, p.OutputQueueBytes()); err != nil {
		return nil, nil, err
	}
	t, err := initTree(treeBuf, treeKey, TreeTypeState, p, p.treeMetadata(queueKey, 0), 0, root)
	if err != nil {
		return nil, nil, err
	}
	qm := QueueMetadata{
		Access:               AccessMetadata{Owner: p.Owner, ProgramOwner: p.ProgramOwner, Forester: p.Forester},
		Rollover:             t.Metadata().Rollover,
		AssociatedMerkleTree: treeKey,
		QueueType:            QueueTypeOutput,
	}
	qm.Rollover.RolloverFee = fee
	q, err := initOutputQueue(queueBuf, queueKey, h, qm, p, t.Capacity())
	if err != nil {
		return nil, nil, err
	}
	return t, q, nil
}

func initTree(buf []byte, pubkey Pubkey, treeType TreeType, p TreeParams, m TreeMetadata, nextIndex uint64, root [32]byte) (*TreeAccount, error) {
	if err := zerocopy.CheckSize(buf, p.TreeAccountBytes()); err != nil {
		return nil, err
	}
	h, err := hasher.New(p.Hasher)
	if err != nil {
		return nil, err
	}
	disc := treeType.discriminator()
	copy(buf[:DiscriminatorBytes], disc[:])
	rest := buf[DiscriminatorBytes:]

	t := &TreeAccount{pubkey: pubkey, h: h, meta: rest[:TreeMetadataBytes]}
	encodeTreeMetadata(t.meta, m)
	rest = rest[TreeMetadataBytes:]

	t.header = words(rest[:TreeHeaderBytes])
	clear(t.header)
	t.header.set(thTreeType, uint64(treeType))
	t.header.set(thNextIndex, nextIndex)
	t.header.set(thHeight, uint64(p.Height))
	t.header.set(thRootHistoryCapacity, p.RootHistoryCapacity)
	t.header.set(thCapacity, uint64(1)<<p.Height)
	t.header.set(thHasher, uint64(p.Hasher))
	bm := BatchMetadata{w: t.header[thFields*8:]}
	bm.init(p.NumBatches, p.BatchSize, p.ZkpBatchSize, p.BloomFilterCapacity)
	rest = rest[TreeHeaderBytes:]

	if t.roots, rest, err = zerocopy.NewCyclicVecAt(rest, p.RootHistoryCapacity, zerocopy.Bytes32); err != nil {
		return nil, err
	}
	t.roots.Push(root)
	if t.queue, rest, err = newQueueAt(rest, h, bm, inputQueueLayout, p.BloomFilterNumIters, nextIndex); err != nil {
		return nil, err
	}
	if t.pending, _, err = NewPendingChangelogAt(rest, p.NumBatches*bm.NumZkpBatches()); err != nil {
		return nil, err
	}
	return t, nil
}

// OpenTreeAccount re-opens a tree account initialized by InitStateTree or
// InitAddressTree.
func OpenTreeAccount(buf []byte, pubkey Pubkey) (*TreeAccount, error) {
	if err := zerocopy.CheckSize(buf, DiscriminatorBytes+TreeMetadataBytes+TreeHeaderBytes); err != nil {
		return nil, err
	}
	var disc [DiscriminatorBytes]byte
	copy(disc[:], buf)
	rest := buf[DiscriminatorBytes:]

	t := &TreeAccount{pubkey: pubkey, meta: rest[:TreeMetadataBytes]}
	rest = rest[TreeMetadataBytes:]
	t.header = words(rest[:TreeHeaderBytes])
	rest = rest[TreeHeaderBytes:]

	tt := t.TreeType()
	if (tt != TreeTypeState && tt != TreeTypeAddress) || disc != tt.discriminator() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDiscriminator, disc[:])
	}
	var err error
	if t.h, err = hasher.New(hasher.Kind(t.header.get(thHasher))); err != nil {
		return nil, fmt.Errorf("%w: %v", zerocopy.ErrInvalidConversion, err)
	}
	bm := t.BatchMetadata()
	if err := bm.check(true); err != nil {
		return nil, err
	}
	if t.Height() == 0 || t.Height() > MaxHeight {
		return nil, fmt.Errorf("%w: height %d", zerocopy.ErrInvalidConversion, t.Height())
	}
	need := TreeAccountBytes(t.Height(), bm.BatchSize(), bm.BloomFilterCapacity(), bm.ZkpBatchSize(), t.RootHistoryCapacity(), bm.NumBatches())
	if err := zerocopy.CheckSize(buf, need); err != nil {
		return nil, err
	}

	if t.roots, rest, err = zerocopy.CyclicVecFromBytesAt(rest, zerocopy.Bytes32); err != nil {
		return nil, err
	}
	if t.roots.Capacity() != t.RootHistoryCapacity() {
		return nil, fmt.Errorf("%w: root history capacity", zerocopy.ErrInvalidConversion)
	}
	if t.queue, rest, err = openQueueAt(rest, t.h, bm, inputQueueLayout); err != nil {
		return nil, err
	}
	if t.pending, _, err = PendingChangelogFromBytesAt(rest); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *TreeAccount) Pubkey() Pubkey               { return t.pubkey }
func (t *TreeAccount) Hasher() hasher.Hasher        { return t.h }
func (t *TreeAccount) TreeType() TreeType           { return TreeType(t.header.get(thTreeType)) }
func (t *TreeAccount) SequenceNumber() uint64       { return t.header.get(thSequenceNumber) }
func (t *TreeAccount) NextIndex() uint64            { return t.header.get(thNextIndex) }
func (t *TreeAccount) Height() uint32               { return uint32(t.header.get(thHeight)) }
func (t *TreeAccount) Capacity() uint64             { return t.header.get(thCapacity) }
func (t *TreeAccount) RootHistoryCapacity() uint64  { return t.header.get(thRootHistoryCapacity) }
func (t *TreeAccount) BatchMetadata() BatchMetadata { return BatchMetadata{w: t.header[thFields*8:]} }
func (t *TreeAccount) Pending() *PendingChangelog   { return t.pending }
func (t *TreeAccount) RootIndex() uint64            { return t.roots.LastIndex() }

// RootAt returns the root at slot i of the root history.
func (t *TreeAccount) RootAt(i uint64) ([32]byte, bool) { return t.roots.Get(i) }

// Root returns the current root.
func (t *TreeAccount) Root() [32]byte {
	r, _ := t.roots.Last()
	return r
}

// Roots returns the root history from oldest to newest.
func (t *TreeAccount) Roots() [][32]byte {
	out := make([][32]byte, 0, t.roots.Len())
	t.roots.Each(func(_ uint64, r [32]byte) bool {
		out = append(out, r)
		return true
	})
	return out
}

// HasRoot reports whether root is still at rootIndex in the history. Zeroed
// slots never match.
func (t *TreeAccount) HasRoot(rootIndex uint64, root [32]byte) bool {
	r, ok := t.roots.Get(rootIndex)
	return ok && r == root && r != [32]byte{}
}

// Metadata returns a decoded copy of the account metadata.
func (t *TreeAccount) Metadata() TreeMetadata { return decodeTreeMetadata(t.meta) }

func (t *TreeAccount) setMetadata(m TreeMetadata) { encodeTreeMetadata(t.meta, m) }

func (t *TreeAccount) IsRolledOver() bool { return decodeOption(t.meta[96+34:]) != nil }

// Batch returns a copy of input queue batch i.
func (t *TreeAccount) Batch(i uint64) (Batch, error) { return t.queue.Batch(i) }

// HashChain returns the hash chain of zkp batch zkpIndex of input queue
// batch i.
func (t *TreeAccount) HashChain(i, zkpIndex uint64) ([32]byte, error) {
	return t.queue.HashChain(i, zkpIndex)
}

// NumPendingElements returns the number of queued values not yet applied.
func (t *TreeAccount) NumPendingElements() uint64 { return t.queue.NumPendingElements() }

func (t *TreeAccount) checkWritable() error {
	if t.IsRolledOver() {
		return ErrMerkleTreeAlreadyRolledOver
	}
	return nil
}

func (t *TreeAccount) checkType(want TreeType) error {
	if got := t.TreeType(); got != want {
		return fmt.Errorf("%w: %v tree, want %v", ErrInvalidTreeType, got, want)
	}
	return nil
}

// Nullifier derives the value queued when leafIndex holding accountHash is
// spent by txHash.
func Nullifier(h hasher.Hasher, accountHash [32]byte, leafIndex uint64, txHash [32]byte) ([32]byte, error) {
	return h.Hash(accountHash[:], hasher.Uint64ToBytes8BE(leafIndex), txHash[:])
}

// InsertNullifierIntoCurrentBatch queues the nullifier of a state tree leaf.
// The account hash goes into the bloom filter, the nullifier into the hash
// chain.
func (t *TreeAccount) InsertNullifierIntoCurrentBatch(accountHash [32]byte, leafIndex uint64, txHash [32]byte) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if err := t.checkType(TreeTypeState); err != nil {
		return err
	}
	nullifier, err := Nullifier(t.h, accountHash, leafIndex, txHash)
	if err != nil {
		return err
	}
	return t.insertIntoInputQueue(accountHash, nullifier)
}

// InsertAddressIntoCurrentBatch queues a new address.
func (t *TreeAccount) InsertAddressIntoCurrentBatch(address [32]byte) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if err := t.checkType(TreeTypeAddress); err != nil {
		return err
	}
	if t.NextIndex()+t.queue.NumPendingElements() >= t.Capacity() {
		return ErrTreeFull
	}
	return t.insertIntoInputQueue(address, address)
}

func (t *TreeAccount) insertIntoInputQueue(bloomValue, chainValue [32]byte) error {
	z, err := t.queue.insert(bloomValue, chainValue, nil)
	if z != nil {
		t.zeroOutRoots(z.sequenceNumber, z.rootIndex)
	}
	return err
}

// CheckInputQueueNonInclusion fails with ErrNonInclusionCheckFailed if value
// may be queued in any bloom filter that is not wiped.
func (t *TreeAccount) CheckInputQueueNonInclusion(value [32]byte) error {
	return t.queue.CheckNonInclusion(value)
}

// zeroOutRoots zeroes every root after the current one up to, but not
// including, rootIndex. Nothing is zeroed once sequenceNumber has been
// reached, the roots in question have then been overwritten already.
func (t *TreeAccount) zeroOutRoots(sequenceNumber uint64, rootIndex uint32) {
	if sequenceNumber <= t.SequenceNumber() {
		return
	}
	n := t.roots.Len()
	last := t.roots.LastIndex()
	for i := last + 1; i < last+n; i++ {
		idx := i % n
		if idx == uint64(rootIndex) {
			break
		}
		_ = t.roots.Set(idx, [32]byte{})
	}
}

// wipePreviousBatchBloomFilter wipes the filter of the most recently
// inserted batch once the batch being filled is less than half full.
func (t *TreeAccount) wipePreviousBatchBloomFilter() error {
	bm := t.BatchMetadata()
	n := bm.NumBatches()
	prevIndex := (bm.NextFullBatchIndex() + n - 1) % n
	cur, err := t.queue.Batch(bm.CurrentlyProcessingBatchIndex())
	if err != nil {
		return err
	}
	prev, err := t.queue.Batch(prevIndex)
	if err != nil {
		return err
	}
	if prev.State != BatchInserted || prev.BloomFilterIsWiped || bm.BatchSize()/2 <= cur.NumInsertedElements() {
		return nil
	}
	bloom.WipeV1(t.queue.filter(prevIndex))
	prev.BloomFilterIsWiped = true
	if err := t.queue.putBatch(prevIndex, prev); err != nil {
		return err
	}
	t.zeroOutRoots(prev.SequenceNumber, prev.RootIndex)
	return nil
}

// slotDistance validates a zkp batch slot of the input queue and returns
// how many zkp batches must be applied before it.
func (t *TreeAccount) slotDistance(batchIndex, zkpIndex uint64) (uint64, error) {
	bm := t.BatchMetadata()
	n := bm.NumBatches()
	b, err := t.queue.Batch(batchIndex)
	if err != nil {
		return 0, err
	}
	if b.State == BatchInserted || zkpIndex < b.NumInsertedZkps {
		return 0, fmt.Errorf("%w: batch %d zkp batch %d already inserted", ErrStaleChangelogEntry, batchIndex, zkpIndex)
	}
	if zkpIndex >= b.CurrentZkpBatchIndex {
		return 0, fmt.Errorf("%w: batch %d zkp batch %d is not complete", ErrBatchNotReady, batchIndex, zkpIndex)
	}
	next := bm.NextFullBatchIndex()
	if batchIndex == next {
		return zkpIndex - b.NumInsertedZkps, nil
	}
	nb, err := t.queue.Batch(next)
	if err != nil {
		return 0, err
	}
	d := (batchIndex + n - next) % n
	return (bm.NumZkpBatches() - nb.NumInsertedZkps) + (d-1)*bm.NumZkpBatches() + zkpIndex, nil
}

func (t *TreeAccount) circuit() CircuitKind {
	if t.TreeType() == TreeTypeAddress {
		return CircuitBatchAddressAppend
	}
	return CircuitBatchUpdate
}

func (t *TreeAccount) publicInput(e PendingEntry, ahead uint64) ([32]byte, error) {
	if t.TreeType() == TreeTypeAddress {
		next := t.NextIndex() + ahead*t.BatchMetadata().ZkpBatchSize()
		return AddressAppendPublicInput(t.h, e.OldRoot, e.NewRoot, e.HashChain, next)
	}
	return NullifyPublicInput(t.h, e.OldRoot, e.NewRoot, e.HashChain)
}

// ApplyBatchUpdate verifies the proof of one zkp batch of the input queue
// and applies it.
//
// The update is applied when its old root is the current root and its
// expected sequence number is the current one. An update for a later
// sequence number is verified and deferred into the pending changelog,
// replacing any earlier entry for the same slot. After an update is
// applied, pending entries are replayed until none applies.
func (t *TreeAccount) ApplyBatchUpdate(u BatchUpdate, v ProofVerifier) (UpdateResult, error) {
	if err := t.checkWritable(); err != nil {
		return UpdateResult{}, err
	}
	ahead, err := t.slotDistance(u.BatchIndex, u.HashChainIndex)
	if err != nil {
		return UpdateResult{}, err
	}
	chain, err := t.queue.HashChain(u.BatchIndex, u.HashChainIndex)
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
	case u.ExpectedSequenceNumber == seq && ahead != 0:
		return UpdateResult{}, fmt.Errorf("%w: %d zkp batches must be applied first", ErrSequenceMismatch, ahead)
	case u.ExpectedSequenceNumber == seq && u.OldRoot != t.Root():
		return UpdateResult{}, ErrRootMismatch
	}

	e := u.entry()
	pih, err := t.publicInput(e, ahead)
	if err != nil {
		return UpdateResult{}, err
	}
	if err := verify(v, t.circuit(), t.BatchMetadata().ZkpBatchSize(), pih, u.Proof); err != nil {
		return UpdateResult{}, err
	}

	if u.ExpectedSequenceNumber > seq {
		superseded, err := t.pending.Upsert(e, seq)
		if err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{Status: UpdateDeferred, Superseded: superseded}, nil
	}

	ev, err := t.applyInputQueueUpdate(e)
	if err != nil {
		return UpdateResult{}, err
	}
	replayed, dropped := t.replayPending()
	return UpdateResult{Status: UpdateApplied, Event: &ev, Replayed: replayed, Dropped: dropped}, nil
}

func (t *TreeAccount) nextRootSlot() uint64 {
	if t.roots.Len() < t.roots.Capacity() {
		return t.roots.Len()
	}
	return (t.roots.LastIndex() + 1) % t.roots.Capacity()
}

// applyInputQueueUpdate moves the root for an entry whose preconditions
// were checked by the caller.
func (t *TreeAccount) applyInputQueueUpdate(e PendingEntry) (Event, error) {
	ahead, err := t.slotDistance(e.BatchIndex, e.HashChainIndex)
	if err != nil {
		return Event{}, err
	}
	if ahead != 0 {
		return Event{}, fmt.Errorf("%w: %d zkp batches must be applied first", ErrSequenceMismatch, ahead)
	}
	chain, err := t.queue.HashChain(e.BatchIndex, e.HashChainIndex)
	if err != nil {
		return Event{}, err
	}
	if chain != e.HashChain {
		return Event{}, ErrHashChainMismatch
	}

	bm := t.BatchMetadata()
	b, err := t.queue.Batch(e.BatchIndex)
	if err != nil {
		return Event{}, err
	}
	seq := t.SequenceNumber() + 1
	rootIndex := t.nextRootSlot()
	state, err := b.MarkAsInserted(seq, uint32(rootIndex), t.RootHistoryCapacity())
	if err != nil {
		return Event{}, err
	}
	if err := t.queue.putBatch(e.BatchIndex, b); err != nil {
		return Event{}, err
	}

	t.roots.Push(e.NewRoot)
	t.header.set(thSequenceNumber, seq)
	oldNext := t.NextIndex()
	newNext := oldNext
	kind := EventBatchNullify
	if t.TreeType() == TreeTypeAddress {
		kind = EventBatchAddressAppend
		newNext += bm.ZkpBatchSize()
		t.header.set(thNextIndex, newNext)
	}
	if state == BatchInserted {
		bm.w.set(bmNextFullBatch, (e.BatchIndex+1)%bm.NumBatches())
	}
	if err := t.wipePreviousBatchBloomFilter(); err != nil {
		return Event{}, err
	}
	return Event{
		Kind:           kind,
		MerkleTree:     t.pubkey,
		BatchIndex:     e.BatchIndex,
		ZkpBatchIndex:  e.HashChainIndex,
		BatchSize:      bm.ZkpBatchSize(),
		OldNextIndex:   oldNext,
		NewNextIndex:   newNext,
		NewRoot:        e.NewRoot,
		RootIndex:      rootIndex,
		SequenceNumber: seq,
	}, nil
}

type pendingApplier struct {
	t      *TreeAccount
	events []Event
}

func (a *pendingApplier) Root() [32]byte         { return a.t.Root() }
func (a *pendingApplier) SequenceNumber() uint64 { return a.t.SequenceNumber() }

func (a *pendingApplier) ApplyPending(e PendingEntry) error {
	ev, err := a.t.applyInputQueueUpdate(e)
	if err != nil {
		return err
	}
	a.events = append(a.events, ev)
	return nil
}

func (t *TreeAccount) replayPending() ([]Event, []DroppedEntry) {
	a := &pendingApplier{t: t}
	_, dropped := t.pending.Replay(a)
	return a.events, dropped
}
