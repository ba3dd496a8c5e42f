package rootseal

import (
	"bytes"
	"fmt"
	"time"

	"github.com/forestrie/go-batchedmerkle/batched"
)

// TreeState is the content of a sealed root. It binds a root to the tree
// that produced it and to the position in the root history where a
// verifier can find it again.
type TreeState struct {
	Tree []byte `cbor:"1,keyasint"`
	// Root is detached before the sealed message is published. Verifiers
	// must read it back from the tree at RootIndex.
	Root []byte `cbor:"2,keyasint"`
	// Timestamp is the unix time (milliseconds) read at the time the root
	// was sealed. Including it allows for the same root to be re-sealed.
	Timestamp      int64  `cbor:"3,keyasint"`
	RootIndex      uint64 `cbor:"4,keyasint"`
	SequenceNumber uint64 `cbor:"5,keyasint"`
	NextIndex      uint64 `cbor:"6,keyasint"`
	Slot           uint64 `cbor:"7,keyasint"`
	TreeType       uint64 `cbor:"8,keyasint"`
	// Queue is the output queue of a state tree. Empty for address trees.
	Queue []byte `cbor:"9,keyasint,omitempty"`
	// NextFullBatchIndex and PendingElements describe the queued values
	// the root does not cover yet.
	NextFullBatchIndex uint64 `cbor:"10,keyasint"`
	PendingElements    uint64 `cbor:"11,keyasint"`
	// NextTree is set once the tree was rolled over. The sealed root is
	// then final.
	NextTree []byte `cbor:"12,keyasint,omitempty"`
}

// StateOf captures the current root of t.
func StateOf(t *batched.TreeAccount, slot uint64, now time.Time) TreeState {
	key := t.Pubkey()
	root := t.Root()
	meta := t.Metadata()
	return TreeState{
		Tree:           key[:],
		Root:           root[:],
		Timestamp:      now.UnixMilli(),
		RootIndex:      t.RootIndex(),
		SequenceNumber: t.SequenceNumber(),
		NextIndex:      t.NextIndex(),
		Slot:           slot,
		TreeType:       uint64(t.TreeType()),

		Queue:              pubkeyBytes(meta.AssociatedQueue),
		NextFullBatchIndex: t.BatchMetadata().NextFullBatchIndex(),
		PendingElements:    t.NumPendingElements(),
		NextTree:           pubkeyBytes(meta.NextMerkleTree),
	}
}

func pubkeyBytes(p batched.Pubkey) []byte {
	if p.IsZero() {
		return nil
	}
	return p[:]
}

// IsStale reports whether t has moved past the sealed state.
func (s TreeState) IsStale(t *batched.TreeAccount) bool {
	return t.SequenceNumber() > s.SequenceNumber
}

// IsRetained reports whether the sealed root can still be read from the
// root history of t. Once rootHistoryCapacity further roots have been
// pushed its slot has been reused.
func (s TreeState) IsRetained(t *batched.TreeAccount) bool {
	seq := t.SequenceNumber()
	if seq < s.SequenceNumber {
		return false
	}
	return seq-s.SequenceNumber < t.RootHistoryCapacity()
}

// CheckProgress checks the sealed state describes an earlier or the
// current state of t. At the sealed sequence number the root index and
// next index must match exactly, later the next index can only have grown.
func (s TreeState) CheckProgress(t *batched.TreeAccount) error {
	if s.TreeType != uint64(t.TreeType()) {
		return fmt.Errorf("%w: sealed %s tree, have %s", ErrTreeMismatch, batched.TreeType(s.TreeType), t.TreeType())
	}
	if !bytes.Equal(s.Queue, pubkeyBytes(t.Metadata().AssociatedQueue)) {
		return fmt.Errorf("%w: output queue %x", ErrTreeMismatch, s.Queue)
	}
	seq := t.SequenceNumber()
	switch {
	case seq < s.SequenceNumber:
		return fmt.Errorf("%w: sealed sequence number %d, tree at %d", ErrStateMismatch, s.SequenceNumber, seq)
	case seq == s.SequenceNumber:
		if s.RootIndex != t.RootIndex() || s.NextIndex != t.NextIndex() {
			return fmt.Errorf("%w: sequence number %d root index %d next index %d, tree has %d %d",
				ErrStateMismatch, seq, s.RootIndex, s.NextIndex, t.RootIndex(), t.NextIndex())
		}
	case s.NextIndex > t.NextIndex():
		return fmt.Errorf("%w: sealed next index %d, tree at %d", ErrStateMismatch, s.NextIndex, t.NextIndex())
	}
	return nil
}
