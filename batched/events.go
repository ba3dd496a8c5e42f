package batched

import "fmt"

// EventKind names the tree transition an Event reports.
type EventKind uint8

const (
	EventBatchNullify EventKind = iota + 1
	EventBatchAddressAppend
	EventBatchAppend
)

func (k EventKind) String() string {
	switch k {
	case EventBatchNullify:
		return "batch-nullify"
	case EventBatchAddressAppend:
		return "batch-address-append"
	case EventBatchAppend:
		return "batch-append"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// Event describes one applied zkp batch. Indexers use it to follow the tree.
type Event struct {
	Kind           EventKind
	MerkleTree     Pubkey
	OutputQueue    Pubkey
	BatchIndex     uint64
	ZkpBatchIndex  uint64
	BatchSize      uint64
	OldNextIndex   uint64
	NewNextIndex   uint64
	NewRoot        [32]byte
	RootIndex      uint64
	SequenceNumber uint64
}
