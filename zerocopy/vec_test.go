package zerocopy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func h32(b byte) [32]byte {
	var v [32]byte
	v[31] = b
	return v
}

func TestVecPushGet(t *testing.T) {
	buf := make([]byte, VecBytes(4, 32)+16)

	v, rest, err := NewVecAt(buf, 4, Bytes32)
	require.NoError(t, err)
	assert.Len(t, rest, 16)
	assert.Equal(t, uint64(4), v.Capacity())
	assert.True(t, v.IsEmpty())

	for i := byte(0); i < 4; i++ {
		require.NoError(t, v.Push(h32(i)))
	}
	assert.True(t, v.IsFull())
	require.ErrorIs(t, v.Push(h32(9)), ErrCapacityExceeded)

	for i := byte(0); i < 4; i++ {
		got, ok := v.Get(uint64(i))
		require.True(t, ok)
		assert.Equal(t, h32(i), got)
	}
	_, ok := v.Get(4)
	assert.False(t, ok)

	last, ok := v.Last()
	require.True(t, ok)
	assert.Equal(t, h32(3), last)
}

func TestVecReopen(t *testing.T) {
	buf := make([]byte, VecBytes(3, 8))
	v, _, err := NewVecAt(buf, 3, U64)
	require.NoError(t, err)
	require.NoError(t, v.Push(7))
	require.NoError(t, v.Push(11))

	v2, rest, err := VecFromBytesAt(buf, U64)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, uint64(2), v2.Len())
	assert.Equal(t, []uint64{7, 11}, v2.Slice())

	// writes through either view are visible in the other
	require.NoError(t, v2.Set(0, 5))
	got, _ := v.Get(0)
	assert.Equal(t, uint64(5), got)
}

func TestVecRemove(t *testing.T) {
	buf := make([]byte, VecBytes(4, 8))
	v, _, err := NewVecAt(buf, 4, U64)
	require.NoError(t, err)
	for _, x := range []uint64{1, 2, 3, 4} {
		require.NoError(t, v.Push(x))
	}

	require.NoError(t, v.Remove(1))
	assert.Equal(t, []uint64{1, 3, 4}, v.Slice())
	require.NoError(t, v.Remove(2))
	assert.Equal(t, []uint64{1, 3}, v.Slice())
	require.ErrorIs(t, v.Remove(2), ErrIndexOutOfBounds)

	v.Clear()
	assert.Equal(t, uint64(0), v.Len())
	assert.Equal(t, uint64(4), v.Capacity())
}

func TestVecInsufficientMemory(t *testing.T) {
	need := VecBytes(4, 32)
	buf := make([]byte, need-1)

	_, _, err := NewVecAt(buf, 4, Bytes32)
	require.ErrorIs(t, err, ErrInsufficientMemory)

	var memErr *InsufficientMemoryError
	require.ErrorAs(t, err, &memErr)
	assert.Equal(t, need, memErr.Needed)
	assert.Equal(t, need-1, memErr.Available)
}

func TestVecUnaligned(t *testing.T) {
	buf := make([]byte, VecBytes(4, 32)+8)
	_, _, err := NewVecAt(buf[1:], 4, Bytes32)
	require.ErrorIs(t, err, ErrUnalignedPointer)
}

func TestVecZeroCapacity(t *testing.T) {
	buf := make([]byte, 64)
	_, _, err := NewVecAt(buf, 0, U64)
	require.ErrorIs(t, err, ErrZeroCapacity)

	// an all zero buffer was never initialized
	_, _, err = VecFromBytesAt(buf, U64)
	require.ErrorIs(t, err, ErrInvalidConversion)
}

func TestVecCorruptCapacity(t *testing.T) {
	buf := make([]byte, VecBytes(2, 32))
	_, _, err := NewVecAt(buf, 2, Bytes32)
	require.NoError(t, err)

	// 1<<59 elements of 32 bytes wraps the region size to zero
	writeU64LE(buf[capOff:], 1<<59)
	_, _, err = VecFromBytesAt(buf, Bytes32)
	require.ErrorIs(t, err, ErrInvalidConversion)

	writeU64LE(buf[capOff:], 3)
	_, _, err = VecFromBytesAt(buf, Bytes32)
	require.ErrorIs(t, err, ErrInvalidConversion)

	_, _, err = NewVecAt(buf, 1<<59, Bytes32)
	require.ErrorIs(t, err, ErrInsufficientMemory)
}
