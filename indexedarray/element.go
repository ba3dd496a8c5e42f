package indexedarray

import (
	"github.com/holiman/uint256"

	"github.com/forestrie/go-batchedmerkle/hasher"
)

// HighestAddressPlusOne is the sentinel value appended by Init. It bounds the
// value domain: every inserted value is strictly below it. It is 2^248 - 1 so
// that every value fits in 31 bytes and is a canonical BN254 field element.
var HighestAddressPlusOne = highestAddressPlusOne()

func highestAddressPlusOne() uint256.Int {
	var x uint256.Int
	x.Lsh(uint256.NewInt(1), 248)
	x.SubUint64(&x, 1)
	return x
}

// Element is a node of the sorted linked list. NextIndex 0 marks the element
// holding the largest value.
type Element struct {
	Index     uint64
	Value     uint256.Int
	NextIndex uint64

	// SequenceNumber is the tree sequence number the element was inserted
	// at. It is not part of the leaf hash.
	SequenceNumber uint64
}

// Hash returns the leaf hash H(value, next_index, next_value), each encoded
// as 32 big-endian bytes.
func (e Element) Hash(h hasher.Hasher, nextValue *uint256.Int) ([32]byte, error) {
	return LeafHash(h, &e.Value, e.NextIndex, nextValue)
}

// LeafHash is the indexed leaf hash for loose fields.
func LeafHash(h hasher.Hasher, value *uint256.Int, nextIndex uint64, nextValue *uint256.Int) ([32]byte, error) {
	v := value.Bytes32()
	ni := hasher.Uint64ToBytes32BE(nextIndex)
	nv := nextValue.Bytes32()
	return h.Hash(v[:], ni[:], nv[:])
}

// IsTail reports whether e holds the largest value.
func (e Element) IsTail() bool { return e.NextIndex == 0 }

// Bundle is the result of planning an insert: the updated low element, the
// new element and the value the new element points at.
type Bundle struct {
	NewLowElement       Element
	NewElement          Element
	NewElementNextValue uint256.Int
}

// LowLeafHash hashes the updated low element, whose next value is the new
// element's value.
func (b Bundle) LowLeafHash(h hasher.Hasher) ([32]byte, error) {
	return b.NewLowElement.Hash(h, &b.NewElement.Value)
}

// NewLeafHash hashes the new element.
func (b Bundle) NewLeafHash(h hasher.Hasher) ([32]byte, error) {
	return b.NewElement.Hash(h, &b.NewElementNextValue)
}
