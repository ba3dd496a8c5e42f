package batched

import (
	"errors"
	"fmt"

	"github.com/forestrie/go-batchedmerkle/concurrent"
	"github.com/forestrie/go-batchedmerkle/indexedarray"
	"github.com/forestrie/go-batchedmerkle/zerocopy"
)

var (
	ErrInvalidParams           = errors.New("batched: invalid tree parameters")
	ErrBatchSizeNotDivisible   = errors.New("batched: batch size must be a multiple of the zkp batch size")
	ErrInvalidDiscriminator    = errors.New("batched: account discriminator does not match")
	ErrInvalidTreeType         = errors.New("batched: operation not supported by this tree type")
	ErrInvalidQueueType        = errors.New("batched: operation not supported by this queue type")
	ErrInvalidBatchIndex       = errors.New("batched: batch index out of range")
	ErrInvalidHashChainIndex   = errors.New("batched: hash chain index out of range")
	ErrBatchNotReady           = errors.New("batched: batch is not ready")
	ErrBatchAlreadyInserted    = errors.New("batched: batch is already inserted")
	ErrQueueFull               = errors.New("batched: current batch is full and not yet inserted")
	ErrTreeFull                = errors.New("batched: tree is full")
	ErrNonInclusionCheckFailed = errors.New("batched: value may already be queued")
	ErrHashChainMismatch       = errors.New("batched: hash chain does not match the queued batch")
	ErrProofInvalid            = errors.New("batched: proof verification failed")
	ErrRootMismatch            = errors.New("batched: old root does not match the current root")
	ErrSequenceMismatch        = errors.New("batched: expected sequence number does not match")
	ErrStaleChangelogEntry     = errors.New("batched: update can no longer be applied")
	ErrPendingChangelogFull    = errors.New("batched: pending changelog is full")
	ErrLeafIndexNotInBatch     = errors.New("batched: leaf index is not in the batch")
	ErrInclusionByIndexFailed  = errors.New("batched: value at leaf index does not match")
	ErrNotAssociated           = errors.New("batched: merkle tree and queue are not associated")
	ErrValueOutOfField         = errors.New("batched: value is not a canonical field element")

	ErrRolloverNotConfigured       = errors.New("batched: rollover is not configured")
	ErrMerkleTreeAlreadyRolledOver = errors.New("batched: merkle tree is already rolled over")
	ErrNotReadyForRollover         = errors.New("batched: merkle tree is not ready for rollover")
	ErrInvalidNetworkFee           = errors.New("batched: invalid network fee")
	ErrInvalidRolloverThreshold    = errors.New("batched: rollover threshold must be at most 100")
)

// ErrorKind groups errors by how a caller is expected to react to them.
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	// KindCapacity errors are resolved by rollover or by waiting for the
	// next batch.
	KindCapacity
	// KindLayout errors are caller programming errors.
	KindLayout
	// KindInvariant errors are rejected inputs that violate an ordering or
	// precondition invariant.
	KindInvariant
	// KindConcurrency errors are expected under racing submitters. The
	// caller re-reads the account and resubmits.
	KindConcurrency
	// KindRollover errors need operator action.
	KindRollover
)

func (k ErrorKind) String() string {
	switch k {
	case KindCapacity:
		return "capacity"
	case KindLayout:
		return "layout"
	case KindInvariant:
		return "invariant"
	case KindConcurrency:
		return "concurrency"
	case KindRollover:
		return "rollover"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

var errorKinds = []struct {
	kind ErrorKind
	errs []error
}{
	{KindCapacity, []error{
		ErrTreeFull, ErrQueueFull, ErrPendingChangelogFull,
		zerocopy.ErrCapacityExceeded, concurrent.ErrTreeFull,
	}},
	{KindLayout, []error{
		zerocopy.ErrInsufficientMemory, zerocopy.ErrUnalignedPointer, zerocopy.ErrInvalidConversion,
		zerocopy.ErrZeroCapacity, ErrInvalidDiscriminator, ErrInvalidParams, ErrBatchSizeNotDivisible,
		ErrInvalidTreeType, ErrInvalidQueueType,
	}},
	{KindInvariant, []error{
		indexedarray.ErrElementAlreadyExists, ErrStaleChangelogEntry, ErrNonInclusionCheckFailed,
		ErrHashChainMismatch, ErrProofInvalid, ErrInvalidBatchIndex, ErrInvalidHashChainIndex,
		ErrBatchNotReady, ErrBatchAlreadyInserted, ErrLeafIndexNotInBatch, ErrInclusionByIndexFailed,
		ErrNotAssociated, ErrValueOutOfField, zerocopy.ErrIndexOutOfBounds,
	}},
	{KindConcurrency, []error{
		ErrRootMismatch, ErrSequenceMismatch, concurrent.ErrInvalidProof, concurrent.ErrCannotUpdateLeaf,
	}},
	{KindRollover, []error{
		ErrRolloverNotConfigured, ErrMerkleTreeAlreadyRolledOver, ErrNotReadyForRollover,
		ErrInvalidNetworkFee, ErrInvalidRolloverThreshold,
	}},
}

// Kind classifies err. Wrapped errors are unwrapped with errors.Is.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range errorKinds {
		for _, target := range k.errs {
			if errors.Is(err, target) {
				return k.kind
			}
		}
	}
	return KindUnknown
}
