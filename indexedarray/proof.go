package indexedarray

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/forestrie/go-batchedmerkle/hasher"
)

// NonInclusionProof shows value is absent: the low element brackets it.
type NonInclusionProof struct {
	Value        uint256.Int
	LowIndex     uint64
	LowValue     uint256.Int
	LowNextIndex uint64
	LowNextValue uint256.Int
}

// NonInclusionProof returns the bracketing low element for value.
func (a *Array) NonInclusionProof(value *uint256.Int) (NonInclusionProof, error) {
	low, next, err := a.FindLowElementForNonexistent(value)
	if err != nil {
		return NonInclusionProof{}, err
	}
	return NonInclusionProof{
		Value:        *value,
		LowIndex:     low.Index,
		LowValue:     low.Value,
		LowNextIndex: low.NextIndex,
		LowNextValue: next,
	}, nil
}

// Check verifies the ordering part of the proof: low < value, and
// value < next unless the low element is the tail.
func (p NonInclusionProof) Check() error {
	if !p.LowValue.Lt(&p.Value) {
		return fmt.Errorf("%w: low=%s, value=%s", ErrLowElementGreaterOrEqualToNewElement, p.LowValue.Dec(), p.Value.Dec())
	}
	if p.LowNextIndex != 0 && !p.Value.Lt(&p.LowNextValue) {
		return fmt.Errorf("%w: value=%s, next=%s", ErrNewElementGreaterOrEqualToNextElement, p.Value.Dec(), p.LowNextValue.Dec())
	}
	return nil
}

// LowLeafHash returns the leaf hash the low element has in the tree.
func (p NonInclusionProof) LowLeafHash(h hasher.Hasher) ([32]byte, error) {
	return LeafHash(h, &p.LowValue, p.LowNextIndex, &p.LowNextValue)
}
