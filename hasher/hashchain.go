package hasher

import (
	"encoding/binary"
	"math/big"
)

// HashChain folds values into a single digest: chain = values[0], then
// chain = H(chain, v) for each following v. An empty input chains to zero.
func HashChain(h Hasher, values ...[32]byte) ([32]byte, error) {
	if len(values) == 0 {
		return [32]byte{}, nil
	}
	chain := values[0]
	for _, v := range values[1:] {
		var err error
		if chain, err = Hash2(h, chain, v); err != nil {
			return [32]byte{}, err
		}
	}
	return chain, nil
}

// Uint64ToBytes32BE encodes v as a 32 byte big-endian value.
func Uint64ToBytes32BE(v uint64) [32]byte {
	var out [32]byte
	binary.BigEndian.PutUint64(out[24:], v)
	return out
}

// Uint64ToBytes8BE encodes v as 8 big-endian bytes.
func Uint64ToBytes8BE(v uint64) []byte {
	var out [8]byte
	binary.BigEndian.PutUint64(out[:], v)
	return out[:]
}

// BigToBytes32 encodes x, which must fit in 32 bytes, big-endian.
func BigToBytes32(x *big.Int) [32]byte {
	var out [32]byte
	x.FillBytes(out[:])
	return out
}
