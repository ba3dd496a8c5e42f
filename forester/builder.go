package forester

import (
	"context"
	"fmt"

	dtcbor "github.com/datatrails/go-datatrails-common/cbor"
	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/forestrie/go-batchedmerkle/batched"
	"github.com/forestrie/go-batchedmerkle/hasher"
	"github.com/forestrie/go-batchedmerkle/sparsetree"
)

// NullifyLeaf is one queued nullifier as the indexer knows it. The queue
// itself only keeps the hash chain.
type NullifyLeaf struct {
	AccountHash [32]byte
	LeafIndex   uint64
	TxHash      [32]byte
}

// Builder produces proven batch updates from a replica of the tree.
//
// A replica is advanced as each update is built, whether or not the update
// is later applied. Updates for consecutive slots can be built ahead of the
// tree, the tree defers them until they apply.
type Builder struct {
	Log    logger.Logger
	Prover Prover
	codec  dtcbor.CBORCodec
}

func NewBuilder(log logger.Logger, prover Prover, codec dtcbor.CBORCodec) *Builder {
	return &Builder{Log: log, Prover: prover, codec: codec}
}

func checkHasher(t *batched.TreeAccount, replica *sparsetree.Tree) error {
	if t.Hasher().Kind() != replica.Hasher().Kind() || t.Height() != replica.Height() {
		return fmt.Errorf("%w: tree %s/%d, replica %s/%d", ErrHasherMismatch,
			t.Hasher().Kind(), t.Height(), replica.Hasher().Kind(), replica.Height())
	}
	return nil
}

// checkSync requires the replica to be at the tree state when the slot is
// the one the tree applies next. Later slots build on the replica alone.
func checkSync(t *batched.TreeAccount, replica *sparsetree.Tree, expectedSequenceNumber uint64) error {
	if expectedSequenceNumber != t.SequenceNumber() {
		return nil
	}
	if replica.Root() != t.Root() {
		return fmt.Errorf("%w: root", ErrReplicaOutOfSync)
	}
	return nil
}

func (b *Builder) prove(ctx context.Context, circuit batched.CircuitKind, t *batched.TreeAccount, slot Slot, pih [32]byte, inputs any) (batched.CompressedProof, error) {
	req, err := newRequest(b.codec, circuit, t.Pubkey(), slot, t.BatchMetadata().ZkpBatchSize(), pih, inputs)
	if err != nil {
		return batched.CompressedProof{}, err
	}
	proof, err := b.Prover.Prove(ctx, req)
	if err != nil {
		return batched.CompressedProof{}, fmt.Errorf("%s: prove batch %d zkp batch %d: %w", circuit, slot.BatchIndex, slot.ZkpBatchIndex, err)
	}
	return proof, nil
}

// BuildNullify builds the update for slot of a state tree input queue.
// leaves must be the queued nullifiers of the slot, in queue order.
func (b *Builder) BuildNullify(
	ctx context.Context, t *batched.TreeAccount, slot Slot, replica *sparsetree.Tree, leaves []NullifyLeaf,
) (batched.BatchUpdate, *UpdateInputs, error) {
	if t.TreeType() != batched.TreeTypeState {
		return batched.BatchUpdate{}, nil, fmt.Errorf("%w: %s tree", batched.ErrInvalidTreeType, t.TreeType())
	}
	if err := checkHasher(t, replica); err != nil {
		return batched.BatchUpdate{}, nil, err
	}
	zkp := t.BatchMetadata().ZkpBatchSize()
	if uint64(len(leaves)) != zkp {
		return batched.BatchUpdate{}, nil, fmt.Errorf("%w: %d, want %d", ErrLeafCount, len(leaves), zkp)
	}
	if err := slot.checkReady(t); err != nil {
		return batched.BatchUpdate{}, nil, err
	}
	if err := checkSync(t, replica, slot.ExpectedSequenceNumber); err != nil {
		return batched.BatchUpdate{}, nil, err
	}
	chain, err := t.HashChain(slot.BatchIndex, slot.ZkpBatchIndex)
	if err != nil {
		return batched.BatchUpdate{}, nil, err
	}

	h := t.Hasher()
	nullifiers := make([][32]byte, len(leaves))
	for i, l := range leaves {
		if nullifiers[i], err = batched.Nullifier(h, l.AccountHash, l.LeafIndex, l.TxHash); err != nil {
			return batched.BatchUpdate{}, nil, err
		}
	}
	if got, err := hasher.HashChain(h, nullifiers...); err != nil {
		return batched.BatchUpdate{}, nil, err
	} else if got != chain {
		return batched.BatchUpdate{}, nil, batched.ErrHashChainMismatch
	}
	for _, l := range leaves {
		if l.LeafIndex >= replica.Capacity() {
			return batched.BatchUpdate{}, nil, fmt.Errorf("%w: leaf %d", sparsetree.ErrLeafIndex, l.LeafIndex)
		}
		// a leaf spent while still in the output queue is not in the tree yet
		old := replica.Leaf(l.LeafIndex)
		if old != l.AccountHash && (old != [32]byte{} || l.LeafIndex < t.NextIndex()) {
			return batched.BatchUpdate{}, nil, fmt.Errorf("%w: leaf %d", ErrLeafMismatch, l.LeafIndex)
		}
	}

	inputs := &UpdateInputs{
		OldRoot:             replica.Root(),
		LeavesHashchainHash: chain,
		Height:              t.Height(),
		BatchSize:           zkp,
	}
	for i, l := range leaves {
		proof, err := replica.Proof(l.LeafIndex)
		if err != nil {
			return batched.BatchUpdate{}, nil, err
		}
		inputs.OldLeaves = append(inputs.OldLeaves, replica.Leaf(l.LeafIndex))
		inputs.MerkleProofs = append(inputs.MerkleProofs, hashes(proof))
		inputs.PathIndices = append(inputs.PathIndices, l.LeafIndex)
		inputs.TxHashes = append(inputs.TxHashes, l.TxHash)
		inputs.Leaves = append(inputs.Leaves, nullifiers[i])
		if err := replica.Set(l.LeafIndex, nullifiers[i]); err != nil {
			return batched.BatchUpdate{}, nil, err
		}
	}
	inputs.NewRoot = replica.Root()
	pih, err := batched.NullifyPublicInput(h, inputs.OldRoot, inputs.NewRoot, chain)
	if err != nil {
		return batched.BatchUpdate{}, nil, err
	}
	inputs.PublicInputHash = pih

	proof, err := b.prove(ctx, batched.CircuitBatchUpdate, t, slot, pih, inputs)
	if err != nil {
		return batched.BatchUpdate{}, nil, err
	}
	b.Log.Debugf("nullify %s batch %d zkp batch %d seq %d: %s -> %s",
		t.Pubkey(), slot.BatchIndex, slot.ZkpBatchIndex, slot.ExpectedSequenceNumber, inputs.OldRoot, inputs.NewRoot)
	return batched.BatchUpdate{
		OldRoot:                inputs.OldRoot,
		NewRoot:                inputs.NewRoot,
		HashChain:              chain,
		BatchIndex:             slot.BatchIndex,
		HashChainIndex:         slot.ZkpBatchIndex,
		ExpectedSequenceNumber: slot.ExpectedSequenceNumber,
		Proof:                  proof,
	}, inputs, nil
}

// BuildAppend builds the append of the next ready zkp batch of q. Appends
// are never deferred, so the replica must be at the current tree state.
//
// When leaves is nil they are read from the queue. Values spent by index
// are zeroed in the queue, the caller must then supply the leaves as they
// were queued.
func (b *Builder) BuildAppend(
	ctx context.Context, t *batched.TreeAccount, q *batched.OutputQueue, replica *sparsetree.Tree, leaves [][32]byte,
) (batched.BatchAppend, *AppendInputs, error) {
	if err := q.CheckIsAssociated(t.Pubkey()); err != nil {
		return batched.BatchAppend{}, nil, err
	}
	if err := checkHasher(t, replica); err != nil {
		return batched.BatchAppend{}, nil, err
	}
	if replica.Root() != t.Root() {
		return batched.BatchAppend{}, nil, fmt.Errorf("%w: root", ErrReplicaOutOfSync)
	}

	qm := q.BatchMetadata()
	slot := Slot{BatchIndex: qm.NextFullBatchIndex(), ExpectedSequenceNumber: t.SequenceNumber()}
	qb, err := q.Batch(slot.BatchIndex)
	if err != nil {
		return batched.BatchAppend{}, nil, err
	}
	if slot.ZkpBatchIndex, err = qb.FirstReadyZkpBatch(); err != nil {
		return batched.BatchAppend{}, nil, err
	}
	chain, err := q.HashChain(slot.BatchIndex, slot.ZkpBatchIndex)
	if err != nil {
		return batched.BatchAppend{}, nil, err
	}
	zkp := qm.ZkpBatchSize()
	if leaves == nil {
		values, err := q.Values(slot.BatchIndex)
		if err != nil {
			return batched.BatchAppend{}, nil, err
		}
		leaves = values[slot.ZkpBatchIndex*zkp : (slot.ZkpBatchIndex+1)*zkp]
	}
	if uint64(len(leaves)) != zkp {
		return batched.BatchAppend{}, nil, fmt.Errorf("%w: %d, want %d", ErrLeafCount, len(leaves), zkp)
	}
	h := t.Hasher()
	if got, err := hasher.HashChain(h, leaves...); err != nil {
		return batched.BatchAppend{}, nil, err
	} else if got != chain {
		return batched.BatchAppend{}, nil, batched.ErrHashChainMismatch
	}

	start := t.NextIndex()
	if start+zkp > replica.Capacity() {
		return batched.BatchAppend{}, nil, batched.ErrTreeFull
	}
	inputs := &AppendInputs{
		OldRoot:             replica.Root(),
		LeavesHashchainHash: chain,
		StartIndex:          start,
		Leaves:              hashes(leaves),
		Height:              t.Height(),
		BatchSize:           zkp,
	}
	for i, leaf := range leaves {
		idx := start + uint64(i)
		old := replica.Leaf(idx)
		proof, err := replica.Proof(idx)
		if err != nil {
			return batched.BatchAppend{}, nil, err
		}
		inputs.OldLeaves = append(inputs.OldLeaves, old)
		inputs.MerkleProofs = append(inputs.MerkleProofs, hashes(proof))
		if old != [32]byte{} {
			leaf = old
		}
		if err := replica.Set(idx, leaf); err != nil {
			return batched.BatchAppend{}, nil, err
		}
	}
	inputs.NewRoot = replica.Root()
	pih, err := batched.AppendPublicInput(h, inputs.OldRoot, inputs.NewRoot, chain, start)
	if err != nil {
		return batched.BatchAppend{}, nil, err
	}
	inputs.PublicInputHash = pih

	proof, err := b.prove(ctx, batched.CircuitBatchAppend, t, slot, pih, inputs)
	if err != nil {
		return batched.BatchAppend{}, nil, err
	}
	b.Log.Debugf("append %s queue batch %d zkp batch %d at %d: %s -> %s",
		t.Pubkey(), slot.BatchIndex, slot.ZkpBatchIndex, start, inputs.OldRoot, inputs.NewRoot)
	return batched.BatchAppend{
		OldRoot:                inputs.OldRoot,
		NewRoot:                inputs.NewRoot,
		HashChain:              chain,
		ExpectedSequenceNumber: slot.ExpectedSequenceNumber,
		Proof:                  proof,
	}, inputs, nil
}

// BuildAddressAppend builds the update for slot of an address tree input
// queue. addresses must be the queued addresses of the slot, in queue
// order.
func (b *Builder) BuildAddressAppend(
	ctx context.Context, t *batched.TreeAccount, slot Slot, replica *AddressReplica, addresses [][32]byte,
) (batched.BatchUpdate, *AddressAppendInputs, error) {
	if t.TreeType() != batched.TreeTypeAddress {
		return batched.BatchUpdate{}, nil, fmt.Errorf("%w: %s tree", batched.ErrInvalidTreeType, t.TreeType())
	}
	if err := checkHasher(t, replica.Tree); err != nil {
		return batched.BatchUpdate{}, nil, err
	}
	zkp := t.BatchMetadata().ZkpBatchSize()
	if uint64(len(addresses)) != zkp {
		return batched.BatchUpdate{}, nil, fmt.Errorf("%w: %d, want %d", ErrLeafCount, len(addresses), zkp)
	}
	if err := slot.checkReady(t); err != nil {
		return batched.BatchUpdate{}, nil, err
	}
	if err := checkSync(t, replica.Tree, slot.ExpectedSequenceNumber); err != nil {
		return batched.BatchUpdate{}, nil, err
	}
	if slot.ExpectedSequenceNumber == t.SequenceNumber() && replica.Tree.NextIndex() != t.NextIndex() {
		return batched.BatchUpdate{}, nil, fmt.Errorf("%w: next index %d, tree %d", ErrReplicaOutOfSync, replica.Tree.NextIndex(), t.NextIndex())
	}
	chain, err := t.HashChain(slot.BatchIndex, slot.ZkpBatchIndex)
	if err != nil {
		return batched.BatchUpdate{}, nil, err
	}
	h := t.Hasher()
	if got, err := hasher.HashChain(h, addresses...); err != nil {
		return batched.BatchUpdate{}, nil, err
	} else if got != chain {
		return batched.BatchUpdate{}, nil, batched.ErrHashChainMismatch
	}

	start := replica.Tree.NextIndex()
	if start+zkp > replica.Tree.Capacity() {
		return batched.BatchUpdate{}, nil, batched.ErrTreeFull
	}
	inputs := &AddressAppendInputs{
		OldRoot:          replica.Tree.Root(),
		HashchainHash:    chain,
		StartIndex:       start,
		NewElementValues: hashes(addresses),
		TreeHeight:       t.Height(),
		BatchSize:        zkp,
	}
	for _, a := range addresses {
		ins, err := replica.insert(a)
		if err != nil {
			return batched.BatchUpdate{}, nil, err
		}
		inputs.LowElementValues = append(inputs.LowElementValues, ins.low.Value.Bytes32())
		inputs.LowElementIndices = append(inputs.LowElementIndices, ins.low.Index)
		inputs.LowElementNextIndices = append(inputs.LowElementNextIndices, ins.low.NextIndex)
		inputs.LowElementNextValues = append(inputs.LowElementNextValues, ins.lowNext.Bytes32())
		inputs.LowElementProofs = append(inputs.LowElementProofs, hashes(ins.lowProof))
		inputs.NewElementProofs = append(inputs.NewElementProofs, hashes(ins.newProof))
	}
	inputs.NewRoot = replica.Tree.Root()
	pih, err := batched.AddressAppendPublicInput(h, inputs.OldRoot, inputs.NewRoot, chain, start)
	if err != nil {
		return batched.BatchUpdate{}, nil, err
	}
	inputs.PublicInputHash = pih

	proof, err := b.prove(ctx, batched.CircuitBatchAddressAppend, t, slot, pih, inputs)
	if err != nil {
		return batched.BatchUpdate{}, nil, err
	}
	b.Log.Debugf("address append %s batch %d zkp batch %d seq %d at %d",
		t.Pubkey(), slot.BatchIndex, slot.ZkpBatchIndex, slot.ExpectedSequenceNumber, start)
	return batched.BatchUpdate{
		OldRoot:                inputs.OldRoot,
		NewRoot:                inputs.NewRoot,
		HashChain:              chain,
		BatchIndex:             slot.BatchIndex,
		HashChainIndex:         slot.ZkpBatchIndex,
		ExpectedSequenceNumber: slot.ExpectedSequenceNumber,
		Proof:                  proof,
	}, inputs, nil
}
