package batched

import (
	"fmt"
	"math/bits"

	"github.com/forestrie/go-batchedmerkle/bloom"
	"github.com/forestrie/go-batchedmerkle/hasher"
	"github.com/forestrie/go-batchedmerkle/zerocopy"
)

const (
	// MaxHeight bounds the tree height. Batched trees keep no frontier, the
	// bound comes from the zero bytes table.
	MaxHeight = hasher.MaxHeight

	DefaultStateTreeHeight     = 26
	DefaultAddressTreeHeight   = 40
	DefaultRootHistoryCapacity = 20
	DefaultNumBatches          = 2
	DefaultBatchSize           = 50_000
	DefaultZkpBatchSize        = 500
	DefaultBloomFilterCapacity = 200_000 * 8
	DefaultBloomFilterNumIters = 3
	DefaultRolloverThreshold   = 95
	DefaultNetworkFee          = 5000

	// AddressTreeInitNextIndex is the next index of a fresh address tree,
	// which holds the two sentinel elements.
	AddressTreeInitNextIndex = 2
)

// TreeParams configures a new batched tree and, for state trees, its
// output queue.
type TreeParams struct {
	Owner        Pubkey
	ProgramOwner Pubkey
	Forester     Pubkey

	Index             uint64
	RolloverThreshold *uint64
	CloseThreshold    *uint64
	NetworkFee        *uint64
	AdditionalBytes   uint64

	Hasher              hasher.Kind
	Height              uint32
	RootHistoryCapacity uint64

	NumBatches          uint64
	BatchSize           uint64
	ZkpBatchSize        uint64
	BloomFilterCapacity uint64
	BloomFilterNumIters uint64

	OutputQueueNumBatches   uint64
	OutputQueueBatchSize    uint64
	OutputQueueZkpBatchSize uint64
}

// DefaultStateTreeParams returns the parameters of a production state tree.
func DefaultStateTreeParams() TreeParams {
	return TreeParams{
		RolloverThreshold:       Some(DefaultRolloverThreshold),
		NetworkFee:              Some(DefaultNetworkFee),
		Hasher:                  hasher.KindPoseidon,
		Height:                  DefaultStateTreeHeight,
		RootHistoryCapacity:     DefaultRootHistoryCapacity,
		NumBatches:              DefaultNumBatches,
		BatchSize:               DefaultBatchSize,
		ZkpBatchSize:            DefaultZkpBatchSize,
		BloomFilterCapacity:     DefaultBloomFilterCapacity,
		BloomFilterNumIters:     DefaultBloomFilterNumIters,
		OutputQueueNumBatches:   DefaultNumBatches,
		OutputQueueBatchSize:    DefaultBatchSize,
		OutputQueueZkpBatchSize: DefaultZkpBatchSize,
	}
}

// DefaultAddressTreeParams returns the parameters of a production address
// tree.
func DefaultAddressTreeParams() TreeParams {
	p := DefaultStateTreeParams()
	p.Height = DefaultAddressTreeHeight
	p.OutputQueueNumBatches = 0
	p.OutputQueueBatchSize = 0
	p.OutputQueueZkpBatchSize = 0
	return p
}

// Validate checks the tree geometry. withOutputQueue also checks the output
// queue geometry.
func (p TreeParams) Validate(withOutputQueue bool) error {
	if p.Height == 0 || p.Height > MaxHeight {
		return fmt.Errorf("%w: height %d", ErrInvalidParams, p.Height)
	}
	if _, err := hasher.New(p.Hasher); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if p.RootHistoryCapacity == 0 {
		return fmt.Errorf("%w: root history capacity is zero", ErrInvalidParams)
	}
	if p.BloomFilterNumIters == 0 {
		return fmt.Errorf("%w: bloom filter iterations is zero", ErrInvalidParams)
	}
	if err := checkQueueGeometry(p.NumBatches, p.BatchSize, p.ZkpBatchSize); err != nil {
		return err
	}
	if err := bloom.CheckCapacityV1(p.BloomFilterCapacity); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if p.RolloverThreshold != nil && *p.RolloverThreshold > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidRolloverThreshold, *p.RolloverThreshold)
	}
	if withOutputQueue {
		return checkQueueGeometry(p.OutputQueueNumBatches, p.OutputQueueBatchSize, p.OutputQueueZkpBatchSize)
	}
	return nil
}

func checkQueueGeometry(numBatches, batchSize, zkpBatchSize uint64) error {
	if numBatches == 0 || batchSize == 0 || zkpBatchSize == 0 {
		return fmt.Errorf("%w: zero queue dimension", ErrInvalidParams)
	}
	if batchSize%zkpBatchSize != 0 {
		return fmt.Errorf("%w: %d %% %d", ErrBatchSizeNotDivisible, batchSize, zkpBatchSize)
	}
	return nil
}

// TreeAccountBytes returns the account size of a batched tree. The height
// does not change the size, it is accepted so callers can pass a complete
// geometry. zkpBatchSize must be non zero.
func TreeAccountBytes(height uint32, batchSize, bloomFilterCapacity, zkpBatchSize, rootHistoryCapacity, numBatches uint64) uint64 {
	_ = height
	return DiscriminatorBytes + TreeMetadataBytes + TreeHeaderBytes +
		zerocopy.CyclicVecBytes(rootHistoryCapacity, hasher.HashBytes) +
		queueBytes(inputQueueLayout, numBatches, batchSize, zkpBatchSize, bloomFilterCapacity) +
		PendingChangelogBytes(numBatches*(batchSize/zkpBatchSize))
}

// OutputQueueBytes returns the account size of an output queue.
func OutputQueueBytes(batchSize, zkpBatchSize, numBatches uint64) uint64 {
	return DiscriminatorBytes + QueueMetadataBytes + QueueHeaderBytes +
		queueBytes(outputQueueLayout, numBatches, batchSize, zkpBatchSize, 0)
}

// TreeAccountBytes returns the tree account size for p.
func (p TreeParams) TreeAccountBytes() uint64 {
	return TreeAccountBytes(p.Height, p.BatchSize, p.BloomFilterCapacity, p.ZkpBatchSize, p.RootHistoryCapacity, p.NumBatches)
}

// OutputQueueBytes returns the output queue account size for p.
func (p TreeParams) OutputQueueBytes() uint64 {
	return OutputQueueBytes(p.OutputQueueBatchSize, p.OutputQueueZkpBatchSize, p.OutputQueueNumBatches)
}

// RolloverFee spreads rent over the leaves appended before the rollover
// threshold is reached: ceil(rent*100 / (2^height * threshold)).
func RolloverFee(height uint32, threshold uint64, rent uint64) (uint64, error) {
	if threshold == 0 || threshold > 100 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRolloverThreshold, threshold)
	}
	if height > MaxHeight {
		return 0, fmt.Errorf("%w: height %d", ErrInvalidParams, height)
	}
	hi, num := bits.Mul64(rent, 100)
	if hi != 0 {
		return 0, fmt.Errorf("%w: rent %d overflows", ErrInvalidParams, rent)
	}
	den := (uint64(1) << height) * threshold
	fee := num / den
	if num%den != 0 {
		fee++
	}
	return fee, nil
}
