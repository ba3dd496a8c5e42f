package bloom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func elem(b byte) []byte {
	x := make([]byte, ValueBytes)
	x[0] = b
	x[1] = b ^ 0x5A
	return x
}

func TestBloomV1InsertAndQuery(t *testing.T) {
	capacity := uint64(2048)
	k := uint64(3)
	require.NoError(t, CheckCapacityV1(capacity))
	bitset := make([]byte, BitsetBytesV1(capacity))

	// Empty filters are definitely-not-present for any element.
	ok, err := MaybeContainsV1(bitset, k, elem(1))
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, IsEmptyV1(bitset))

	require.NoError(t, InsertV1(bitset, k, elem(1)))
	ok, err = MaybeContainsV1(bitset, k, elem(1))
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, IsEmptyV1(bitset))

	for i := byte(2); i < 12; i++ {
		require.NoError(t, InsertV1(bitset, k, elem(i)))
	}
	for i := byte(1); i < 12; i++ {
		ok, err := MaybeContainsV1(bitset, k, elem(i))
		require.NoError(t, err)
		require.True(t, ok)
	}

	// A second insert of the same element changes no bit.
	require.ErrorIs(t, InsertV1(bitset, k, elem(3)), ErrMaybePresent)

	WipeV1(bitset)
	require.True(t, IsEmptyV1(bitset))
	ok, err = MaybeContainsV1(bitset, k, elem(1))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBloomV1RejectsBadInputs(t *testing.T) {
	bitset := make([]byte, 8)

	err := InsertV1(bitset, 0, elem(1))
	require.ErrorIs(t, err, ErrBadK)

	err = InsertV1(bitset, 3, make([]byte, ValueBytes-1))
	require.ErrorIs(t, err, ErrBadElemSize)

	_, err = MaybeContainsV1(bitset, 3, make([]byte, ValueBytes+1))
	require.ErrorIs(t, err, ErrBadElemSize)

	_, err = MaybeContainsV1(nil, 3, elem(1))
	require.ErrorIs(t, err, ErrBadRegionSize)
}
