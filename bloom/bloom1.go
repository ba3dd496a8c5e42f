package bloom

import (
	"crypto/sha256"
)

const bloomDomainV1 = 0xB0

// InsertV1 sets the k bits for elem in bitset.
//
// The filter size in bits is 8*len(bitset). If every bit for elem was already
// set, the bits are left as they are and ErrMaybePresent is returned: the
// element may be a duplicate of an earlier insert.
func InsertV1(bitset []byte, k uint64, elem []byte) error {
	if err := checkArgs(bitset, k, elem); err != nil {
		return err
	}
	h1, h2 := hashPairV1(elem)
	if !setBitsLSB0(bitset, uint64(len(bitset))*8, k, h1, h2) {
		return ErrMaybePresent
	}
	return nil
}

// MaybeContainsV1 checks membership for elem.
//
// Returns (false,nil) if the filter says "definitely not present".
// Returns (true,nil) if the filter says "maybe present".
func MaybeContainsV1(bitset []byte, k uint64, elem []byte) (bool, error) {
	if err := checkArgs(bitset, k, elem); err != nil {
		return false, err
	}
	h1, h2 := hashPairV1(elem)
	return testBitsLSB0(bitset, uint64(len(bitset))*8, k, h1, h2), nil
}

// WipeV1 clears every bit.
func WipeV1(bitset []byte) {
	clear(bitset)
}

// IsEmptyV1 reports whether no bit is set.
func IsEmptyV1(bitset []byte) bool {
	for _, b := range bitset {
		if b != 0 {
			return false
		}
	}
	return true
}

func checkArgs(bitset []byte, k uint64, elem []byte) error {
	if len(elem) != ValueBytes {
		return ErrBadElemSize
	}
	if k == 0 {
		return ErrBadK
	}
	if len(bitset) == 0 {
		return ErrBadRegionSize
	}
	return nil
}

func hashPairV1(elem32 []byte) (h1 uint64, h2 uint64) {
	// SHA-256( 0xB0 || elem32 )
	var buf [1 + ValueBytes]byte
	buf[0] = bloomDomainV1
	copy(buf[1:], elem32)
	sum := sha256.Sum256(buf[:])
	h1 = readU64BE(sum[0:8])
	h2 = readU64BE(sum[8:16])
	if h2 == 0 {
		h2 = 1
	}
	return h1, h2
}

// setBitsLSB0 returns true if at least one bit changed.
func setBitsLSB0(bitset []byte, mBits uint64, k uint64, h1, h2 uint64) bool {
	changed := false
	for i := uint64(0); i < k; i++ {
		j := (h1 + i*h2) % mBits
		byteIdx := j >> 3
		bit := uint8(j & 7)
		if bitset[byteIdx]&(1<<bit) == 0 {
			changed = true
		}
		bitset[byteIdx] |= (1 << bit)
	}
	return changed
}

func testBitsLSB0(bitset []byte, mBits uint64, k uint64, h1, h2 uint64) bool {
	for i := uint64(0); i < k; i++ {
		j := (h1 + i*h2) % mBits
		byteIdx := j >> 3
		bit := uint8(j & 7)
		if (bitset[byteIdx] & (1 << bit)) == 0 {
			return false
		}
	}
	return true
}
