package forester

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/forestrie/go-batchedmerkle/hasher"
	"github.com/forestrie/go-batchedmerkle/indexedarray"
	"github.com/forestrie/go-batchedmerkle/sparsetree"
)

// AddressReplica is the off-chain copy of an address tree: the sorted
// element list and the merkle tree of its leaf hashes. Element i is leaf i.
type AddressReplica struct {
	Tree  *sparsetree.Tree
	Array *indexedarray.Array
}

// NewAddressReplica returns a replica of a freshly initialized address
// tree. Its root is batched.AddressTreeInitRoot.
func NewAddressReplica(h hasher.Hasher, height uint32) (*AddressReplica, error) {
	tree, err := sparsetree.New(h, height)
	if err != nil {
		return nil, err
	}
	arr := indexedarray.New()
	if err := arr.Init(); err != nil {
		return nil, err
	}
	r := &AddressReplica{Tree: tree, Array: arr}
	for _, e := range arr.Elements() {
		next, _ := arr.Get(e.NextIndex)
		leaf, err := e.Hash(h, r.nextValue(e, next))
		if err != nil {
			return nil, err
		}
		if _, err := tree.Append(leaf); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *AddressReplica) nextValue(e, next indexedarray.Element) *uint256.Int {
	if e.IsTail() {
		return new(uint256.Int)
	}
	return &next.Value
}

// addressInsert is the record of one address insert, as the circuit needs
// it.
type addressInsert struct {
	low      indexedarray.Element
	lowNext  uint256.Int
	lowProof [][32]byte
	newProof [][32]byte
}

// insert adds address to the replica. The low element is updated first,
// the new element proof is taken against the updated tree.
func (r *AddressReplica) insert(address [32]byte) (addressInsert, error) {
	h := r.Tree.Hasher()
	var v uint256.Int
	v.SetBytes32(address[:])

	b, err := r.Array.NewElement(&v)
	if err != nil {
		return addressInsert{}, err
	}
	low, _ := r.Array.Get(b.NewLowElement.Index)
	if b.NewElement.Index != r.Tree.NextIndex() {
		return addressInsert{}, fmt.Errorf("%w: element %d, leaf %d", ErrReplicaOutOfSync, b.NewElement.Index, r.Tree.NextIndex())
	}

	ins := addressInsert{low: low, lowNext: b.NewElementNextValue}
	if ins.lowProof, err = r.Tree.Proof(low.Index); err != nil {
		return addressInsert{}, err
	}
	lowLeaf, err := b.LowLeafHash(h)
	if err != nil {
		return addressInsert{}, err
	}
	newLeaf, err := b.NewLeafHash(h)
	if err != nil {
		return addressInsert{}, err
	}
	if err := r.Tree.Update(low.Index, lowLeaf); err != nil {
		return addressInsert{}, err
	}
	if ins.newProof, err = r.Tree.Proof(b.NewElement.Index); err != nil {
		return addressInsert{}, err
	}
	if _, err := r.Tree.Append(newLeaf); err != nil {
		return addressInsert{}, err
	}
	if err := r.Array.Commit(b); err != nil {
		return addressInsert{}, err
	}
	return ins, nil
}
