package batched

import (
	"errors"
	"fmt"

	"github.com/forestrie/go-batchedmerkle/zerocopy"
)

// PendingEntry is a verified batch update that could not be applied when it
// was submitted because an earlier update had not been applied yet.
type PendingEntry struct {
	OldRoot                [32]byte
	NewRoot                [32]byte
	HashChain              [32]byte
	HashChainIndex         uint64
	BatchIndex             uint64
	ExpectedSequenceNumber uint64
}

// PendingEntryBytes is the encoded size of a PendingEntry.
const PendingEntryBytes = 3*32 + 3*8

func (e PendingEntry) sameSlot(o PendingEntry) bool {
	return e.BatchIndex == o.BatchIndex && e.HashChainIndex == o.HashChainIndex
}

type pendingCodec struct{}

func (pendingCodec) Size() int  { return PendingEntryBytes }
func (pendingCodec) Align() int { return 8 }

func (pendingCodec) Decode(p []byte) PendingEntry {
	var e PendingEntry
	copy(e.OldRoot[:], p[0:32])
	copy(e.NewRoot[:], p[32:64])
	copy(e.HashChain[:], p[64:96])
	w := words(p[96:])
	e.HashChainIndex = w.get(0)
	e.BatchIndex = w.get(1)
	e.ExpectedSequenceNumber = w.get(2)
	return e
}

func (pendingCodec) Encode(p []byte, e PendingEntry) {
	copy(p[0:32], e.OldRoot[:])
	copy(p[32:64], e.NewRoot[:])
	copy(p[64:96], e.HashChain[:])
	w := words(p[96:])
	w.set(0, e.HashChainIndex)
	w.set(1, e.BatchIndex)
	w.set(2, e.ExpectedSequenceNumber)
}

var pendingZC zerocopy.Codec[PendingEntry] = pendingCodec{}

// PendingTarget is the state pending entries are checked and applied
// against.
type PendingTarget interface {
	Root() [32]byte
	SequenceNumber() uint64
	// ApplyPending applies an entry whose old root and expected sequence
	// number match the current state.
	ApplyPending(e PendingEntry) error
}

// DroppedEntry is a pending entry removed without being applied.
type DroppedEntry struct {
	Entry PendingEntry
	Err   error
}

// PendingChangelog is a bounded set of deferred updates, at most one per
// (batch index, hash chain index), kept in arrival order.
type PendingChangelog struct {
	entries *zerocopy.Vec[PendingEntry]
}

// PendingChangelogBytes returns the region size for capacity entries.
func PendingChangelogBytes(capacity uint64) uint64 {
	return zerocopy.VecBytes(capacity, PendingEntryBytes)
}

// NewPendingChangelogAt initializes an empty pending changelog at the start
// of buf.
func NewPendingChangelogAt(buf []byte, capacity uint64) (*PendingChangelog, []byte, error) {
	v, rest, err := zerocopy.NewVecAt(buf, capacity, pendingZC)
	if err != nil {
		return nil, nil, err
	}
	return &PendingChangelog{entries: v}, rest, nil
}

// PendingChangelogFromBytesAt re-opens a pending changelog.
func PendingChangelogFromBytesAt(buf []byte) (*PendingChangelog, []byte, error) {
	v, rest, err := zerocopy.VecFromBytesAt(buf, pendingZC)
	if err != nil {
		return nil, nil, err
	}
	return &PendingChangelog{entries: v}, rest, nil
}

func (p *PendingChangelog) Len() uint64      { return p.entries.Len() }
func (p *PendingChangelog) Capacity() uint64 { return p.entries.Capacity() }

// Entries returns a copy of the pending entries in arrival order.
func (p *PendingChangelog) Entries() []PendingEntry { return p.entries.Slice() }

// Upsert stores e. An entry for the same slot is replaced and returned, the
// new entry takes the last position. When the changelog is full, entries
// older than sequenceNumber are pruned first.
func (p *PendingChangelog) Upsert(e PendingEntry, sequenceNumber uint64) (*PendingEntry, error) {
	var superseded *PendingEntry
	for i, x := range p.entries.Slice() {
		if x.sameSlot(e) {
			old := x
			superseded = &old
			if err := p.entries.Remove(uint64(i)); err != nil {
				return nil, err
			}
			break
		}
	}
	if p.entries.IsFull() {
		p.PruneStale(sequenceNumber)
	}
	if err := p.entries.Push(e); err != nil {
		if errors.Is(err, zerocopy.ErrCapacityExceeded) {
			return superseded, fmt.Errorf("%w: capacity %d", ErrPendingChangelogFull, p.entries.Capacity())
		}
		return superseded, err
	}
	return superseded, nil
}

// PruneStale removes entries whose expected sequence number has passed.
func (p *PendingChangelog) PruneStale(sequenceNumber uint64) []DroppedEntry {
	var dropped []DroppedEntry
	for i := uint64(0); i < p.entries.Len(); {
		e, _ := p.entries.Get(i)
		if e.ExpectedSequenceNumber < sequenceNumber {
			_ = p.entries.Remove(i)
			dropped = append(dropped, DroppedEntry{Entry: e, Err: ErrStaleChangelogEntry})
			continue
		}
		i++
	}
	return dropped
}

// Clear removes every entry.
func (p *PendingChangelog) Clear() { p.entries.Clear() }

// ApplyPending makes one pass over the entries in arrival order. An entry
// is applied when its old root and expected sequence number match the
// current state of t, which is re-read after every application. Entries
// that can never apply are dropped:
//   - expected sequence number below the current one: ErrStaleChangelogEntry
//   - expected sequence number reached but old root differs: ErrRootMismatch
//   - t refused the entry: the error returned by t
//
// Entries for a later sequence number are kept.
func (p *PendingChangelog) ApplyPending(t PendingTarget) ([]PendingEntry, []DroppedEntry) {
	var applied []PendingEntry
	var dropped []DroppedEntry
	for i := uint64(0); i < p.entries.Len(); {
		e, _ := p.entries.Get(i)
		seq := t.SequenceNumber()
		switch {
		case e.ExpectedSequenceNumber > seq:
			i++
			continue
		case e.ExpectedSequenceNumber < seq:
			dropped = append(dropped, DroppedEntry{Entry: e, Err: ErrStaleChangelogEntry})
		case e.OldRoot != t.Root():
			dropped = append(dropped, DroppedEntry{Entry: e, Err: ErrRootMismatch})
		default:
			if err := t.ApplyPending(e); err != nil {
				dropped = append(dropped, DroppedEntry{Entry: e, Err: err})
			} else {
				applied = append(applied, e)
			}
		}
		_ = p.entries.Remove(i)
	}
	return applied, dropped
}

// Replay repeats ApplyPending until a pass applies nothing.
func (p *PendingChangelog) Replay(t PendingTarget) ([]PendingEntry, []DroppedEntry) {
	var applied []PendingEntry
	var dropped []DroppedEntry
	for {
		a, d := p.ApplyPending(t)
		applied = append(applied, a...)
		dropped = append(dropped, d...)
		if len(a) == 0 {
			return applied, dropped
		}
	}
}
