package indexedarray

import (
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forestrie/go-batchedmerkle/hasher"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func TestInit(t *testing.T) {
	a := New()
	assert.True(t, a.IsEmpty())
	require.NoError(t, a.Init())

	assert.Equal(t, 2, a.Len())
	zero, _ := a.Get(0)
	assert.Equal(t, uint64(1), zero.NextIndex)
	assert.True(t, zero.Value.IsZero())

	top, _ := a.Get(1)
	assert.True(t, top.IsTail())
	assert.Equal(t, HighestAddressPlusOne, top.Value)
	assert.Equal(t, uint64(1), a.HighestElementIndex())

	assert.Equal(t, "452312848583266388373324160190187140051835877600158453279131187530910662655", HighestAddressPlusOne.Dec())
}

func TestAppendOrdering(t *testing.T) {
	a := New()
	require.NoError(t, a.Init())

	// insert out of order and check each bundle links correctly
	b, err := a.Append(u(30))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), b.NewLowElement.Index)
	assert.Equal(t, uint64(2), b.NewLowElement.NextIndex)
	assert.Equal(t, uint64(1), b.NewElement.NextIndex)
	assert.Equal(t, HighestAddressPlusOne, b.NewElementNextValue)

	b, err = a.Append(u(10))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), b.NewLowElement.Index)
	assert.Equal(t, uint64(2), b.NewElement.NextIndex)
	assert.Equal(t, *u(30), b.NewElementNextValue)

	low, newIdx, err := a.Insert(u(20), 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), low)
	assert.Equal(t, uint64(4), newIdx)
	e, _ := a.Get(newIdx)
	assert.Equal(t, uint64(7), e.SequenceNumber)

	var walked []uint64
	a.Walk(func(e Element) bool {
		if e.IsTail() {
			return false
		}
		walked = append(walked, e.Value.Uint64())
		return true
	})
	assert.Equal(t, []uint64{0, 10, 20, 30}, walked)
}

func TestAppendRejectsDuplicate(t *testing.T) {
	a := New()
	require.NoError(t, a.Init())
	_, err := a.Append(u(5))
	require.NoError(t, err)

	_, err = a.Append(u(5))
	require.ErrorIs(t, err, ErrElementAlreadyExists)
	_, err = a.Append(u(0))
	require.ErrorIs(t, err, ErrElementAlreadyExists)
	_, err = a.Append(&HighestAddressPlusOne)
	require.ErrorIs(t, err, ErrElementAlreadyExists)
}

func TestAppendWithLowElementIndexValidates(t *testing.T) {
	a := New()
	require.NoError(t, a.Init())
	_, err := a.Append(u(100))
	require.NoError(t, err)

	// low element 0 points at 100, so 150 is out of its bracket
	_, err = a.AppendWithLowElementIndex(0, u(150))
	require.ErrorIs(t, err, ErrNewElementGreaterOrEqualToNextElement)

	// low element 2 holds 100, so 50 is below it
	_, err = a.AppendWithLowElementIndex(2, u(50))
	require.ErrorIs(t, err, ErrLowElementGreaterOrEqualToNewElement)

	_, err = a.AppendWithLowElementIndex(9, u(50))
	require.ErrorIs(t, err, ErrIndexNotFound)

	// nothing was written by the failed attempts
	assert.Equal(t, 3, a.Len())

	_, err = a.AppendWithLowElementIndex(2, u(150))
	require.NoError(t, err)
}

func TestTailAppendMovesHighest(t *testing.T) {
	a := New()
	_, err := a.Append(u(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), a.HighestElementIndex())
	_, err = a.Append(u(9))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), a.HighestElementIndex())

	lowest, ok := a.Lowest()
	require.True(t, ok)
	assert.Equal(t, *u(3), lowest.Value)
}

func TestFindLowElementForExistent(t *testing.T) {
	a := New()
	require.NoError(t, a.Init())
	_, err := a.Append(u(10))
	require.NoError(t, err)
	_, err = a.Append(u(20))
	require.NoError(t, err)

	low, next, err := a.FindLowElementForExistent(u(20))
	require.NoError(t, err)
	assert.Equal(t, *u(10), low.Value)
	assert.Equal(t, HighestAddressPlusOne, next)

	_, _, err = a.FindLowElementForExistent(u(15))
	require.ErrorIs(t, err, ErrElementDoesNotExist)

	e, ok := a.FindElement(u(10))
	require.True(t, ok)
	assert.Equal(t, uint64(2), e.Index)
}

func TestNonInclusionProof(t *testing.T) {
	a := New()
	require.NoError(t, a.Init())
	for _, v := range []uint64{40, 10, 30} {
		_, err := a.Append(u(v))
		require.NoError(t, err)
	}

	p, err := a.NonInclusionProof(u(25))
	require.NoError(t, err)
	require.NoError(t, p.Check())
	assert.Equal(t, *u(10), p.LowValue)
	assert.Equal(t, *u(30), p.LowNextValue)

	_, err = a.NonInclusionProof(u(30))
	require.ErrorIs(t, err, ErrElementAlreadyExists)

	// a forged bracket fails the ordering check
	forged := p
	forged.LowNextValue = *u(20)
	require.ErrorIs(t, forged.Check(), ErrNewElementGreaterOrEqualToNextElement)
	forged = p
	forged.LowValue = *u(26)
	require.ErrorIs(t, forged.Check(), ErrLowElementGreaterOrEqualToNewElement)
}

func TestRandomInsertsStaySorted(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	a := New()
	require.NoError(t, a.Init())

	inserted := map[uint64]bool{0: true}
	for i := 0; i < 500; i++ {
		v := rng.Uint64()
		_, err := a.Append(u(v))
		if inserted[v] {
			require.ErrorIs(t, err, ErrElementAlreadyExists)
			continue
		}
		require.NoError(t, err)
		inserted[v] = true
	}

	count := 0
	var prev *uint256.Int
	a.Walk(func(e Element) bool {
		if prev != nil {
			require.True(t, prev.Lt(&e.Value))
		}
		v := e.Value
		prev = &v
		count++
		return true
	})
	assert.Equal(t, a.Len(), count)
}

func TestLeafHash(t *testing.T) {
	h := hasher.Sha256{}
	a := New()
	require.NoError(t, a.Init())
	b, err := a.Append(u(5))
	require.NoError(t, err)

	lowHash, err := b.LowLeafHash(h)
	require.NoError(t, err)
	var zero uint256.Int
	v := zero.Bytes32()
	ni := hasher.Uint64ToBytes32BE(2)
	nv := u(5).Bytes32()
	want, _ := h.Hash(v[:], ni[:], nv[:])
	assert.Equal(t, want, lowHash)

	newHash, err := b.NewLeafHash(h)
	require.NoError(t, err)
	e, _ := a.Get(2)
	want, err = e.Hash(h, &HighestAddressPlusOne)
	require.NoError(t, err)
	assert.Equal(t, want, newHash)
}
