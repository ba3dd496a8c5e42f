// Package indexedarray implements the sorted linked list behind an indexed
// merkle tree.
//
// Elements are stored in insertion order; each element points at the element
// holding the next larger value. Element 0 always holds value 0. A value is
// provably absent when some element v_low satisfies v_low < value < v_next.
package indexedarray

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Array is an in-memory indexed array.
type Array struct {
	elements            []Element
	currentNodeIndex    uint64
	highestElementIndex uint64
}

// New returns an array holding only the zero element.
func New() *Array {
	return &Array{elements: []Element{{}}}
}

// Init appends HighestAddressPlusOne, giving the canonical two element
// starting state.
func (a *Array) Init() error {
	_, err := a.Append(&HighestAddressPlusOne)
	return err
}

// Len returns the number of elements including the zero element.
func (a *Array) Len() int { return len(a.elements) }

// IsEmpty reports whether only the zero element exists.
func (a *Array) IsEmpty() bool { return a.currentNodeIndex == 0 }

func (a *Array) CurrentNodeIndex() uint64    { return a.currentNodeIndex }
func (a *Array) HighestElementIndex() uint64 { return a.highestElementIndex }

// Get returns the element at index.
func (a *Array) Get(index uint64) (Element, bool) {
	if index >= uint64(len(a.elements)) {
		return Element{}, false
	}
	return a.elements[index], true
}

// Elements returns a copy of all elements in insertion order.
func (a *Array) Elements() []Element {
	return append([]Element(nil), a.elements...)
}

// HighestElement returns the element with the largest value.
func (a *Array) HighestElement() Element {
	return a.elements[a.highestElementIndex]
}

// Lowest returns the first inserted element after the zero element.
func (a *Array) Lowest() (Element, bool) {
	if a.currentNodeIndex < 1 {
		return Element{}, false
	}
	return a.elements[1], true
}

// nextValue returns the value e points at, zero for the tail.
func (a *Array) nextValue(e Element) uint256.Int {
	if e.IsTail() {
		return uint256.Int{}
	}
	return a.elements[e.NextIndex].Value
}

// FindElement returns the element holding value.
func (a *Array) FindElement(value *uint256.Int) (Element, bool) {
	for _, e := range a.elements {
		if e.Value.Eq(value) {
			return e, true
		}
	}
	return Element{}, false
}

// FindLowElementIndexForExistent returns the index of the element pointing
// at value.
func (a *Array) FindLowElementIndexForExistent(value *uint256.Int) (uint64, error) {
	for _, e := range a.elements {
		if e.IsTail() {
			continue
		}
		if a.elements[e.NextIndex].Value.Eq(value) {
			return e.Index, nil
		}
	}
	return 0, ErrElementDoesNotExist
}

// FindLowElementForExistent returns the element pointing at value and
// value's own next value.
func (a *Array) FindLowElementForExistent(value *uint256.Int) (Element, uint256.Int, error) {
	i, err := a.FindLowElementIndexForExistent(value)
	if err != nil {
		return Element{}, uint256.Int{}, err
	}
	low := a.elements[i]
	return low, a.nextValue(a.elements[low.NextIndex]), nil
}

// FindLowElementIndexForNonexistent returns the index of the element whose
// value is the largest value below value.
func (a *Array) FindLowElementIndexForNonexistent(value *uint256.Int) (uint64, error) {
	for _, e := range a.elements {
		if e.Value.Eq(value) {
			return 0, ErrElementAlreadyExists
		}
	}
	for _, e := range a.elements {
		if e.IsTail() {
			continue
		}
		next := &a.elements[e.NextIndex].Value
		if e.Value.Lt(value) && next.Gt(value) {
			return e.Index, nil
		}
	}
	// value is above every stored value, so the low element is the tail
	if a.elements[a.highestElementIndex].Value.Gt(value) {
		return 0, ErrElementNotFound
	}
	return a.highestElementIndex, nil
}

// FindLowElementForNonexistent returns the low element for value together
// with the value the low element currently points at.
func (a *Array) FindLowElementForNonexistent(value *uint256.Int) (Element, uint256.Int, error) {
	i, err := a.FindLowElementIndexForNonexistent(value)
	if err != nil {
		return Element{}, uint256.Int{}, err
	}
	low := a.elements[i]
	return low, a.nextValue(low), nil
}

// NewElementWithLowElementIndex plans the insert of value after the element
// at lowIndex without modifying the array.
func (a *Array) NewElementWithLowElementIndex(lowIndex uint64, value *uint256.Int) (Bundle, error) {
	low, ok := a.Get(lowIndex)
	if !ok {
		return Bundle{}, fmt.Errorf("%w: low index %d", ErrIndexNotFound, lowIndex)
	}
	if !low.IsTail() {
		if !value.Lt(&a.elements[low.NextIndex].Value) {
			return Bundle{}, ErrNewElementGreaterOrEqualToNextElement
		}
	}
	if !low.Value.Lt(value) {
		return Bundle{}, ErrLowElementGreaterOrEqualToNewElement
	}

	newIndex := a.currentNodeIndex + 1
	b := Bundle{
		NewElement: Element{
			Index:     newIndex,
			Value:     *value,
			NextIndex: low.NextIndex,
		},
		NewLowElement: low,
	}
	b.NewLowElement.NextIndex = newIndex
	b.NewElementNextValue = a.nextValue(low)
	return b, nil
}

// NewElement plans the insert of value after its low element.
func (a *Array) NewElement(value *uint256.Int) (Bundle, error) {
	lowIndex, err := a.FindLowElementIndexForNonexistent(value)
	if err != nil {
		return Bundle{}, err
	}
	return a.NewElementWithLowElementIndex(lowIndex, value)
}

// AppendWithLowElementIndex inserts value after the element at lowIndex. The
// ordering low < value < next is re-validated before anything is written.
func (a *Array) AppendWithLowElementIndex(lowIndex uint64, value *uint256.Int) (Bundle, error) {
	b, err := a.NewElementWithLowElementIndex(lowIndex, value)
	if err != nil {
		return Bundle{}, err
	}
	a.commit(b)
	return b, nil
}

// Append inserts value after its low element.
func (a *Array) Append(value *uint256.Int) (Bundle, error) {
	b, err := a.NewElement(value)
	if err != nil {
		return Bundle{}, err
	}
	a.commit(b)
	return b, nil
}

// Commit applies a bundle produced by NewElement. The bundle must have been
// planned against the current state of a.
func (a *Array) Commit(b Bundle) error {
	if b.NewElement.Index != a.currentNodeIndex+1 {
		return fmt.Errorf("%w: stale bundle for index %d", ErrIndexNotFound, b.NewElement.Index)
	}
	if _, err := a.NewElementWithLowElementIndex(b.NewLowElement.Index, &b.NewElement.Value); err != nil {
		return err
	}
	a.commit(b)
	return nil
}

func (a *Array) commit(b Bundle) {
	if a.elements[b.NewLowElement.Index].IsTail() {
		a.highestElementIndex = b.NewElement.Index
	}
	a.elements[b.NewLowElement.Index] = b.NewLowElement
	a.elements = append(a.elements, b.NewElement)
	a.currentNodeIndex = b.NewElement.Index
}

// Insert adds value at the given tree sequence number and returns the
// indices of the updated low element and of the new element.
func (a *Array) Insert(value *uint256.Int, sequenceNumber uint64) (lowIndex uint64, newIndex uint64, err error) {
	b, err := a.NewElement(value)
	if err != nil {
		return 0, 0, err
	}
	b.NewElement.SequenceNumber = sequenceNumber
	a.commit(b)
	return b.NewLowElement.Index, b.NewElement.Index, nil
}

// Walk visits elements in ascending value order, starting at the zero
// element, until fn returns false.
func (a *Array) Walk(fn func(e Element) bool) {
	e := a.elements[0]
	for {
		if !fn(e) {
			return
		}
		if e.IsTail() {
			return
		}
		e = a.elements[e.NextIndex]
	}
}
