package bloom

import "errors"

const (
	// ValueBytes is the fixed element width.
	ValueBytes = 32

	// BitOrderLSB0 means bit 0 is the least-significant bit of byte 0.
	BitOrderLSB0 uint8 = 0
)

var (
	ErrBadElemSize   = errors.New("bloom: element must be 32 bytes")
	ErrBadRegionSize = errors.New("bloom: bitset region size does not match capacity")
	ErrBadK          = errors.New("bloom: number of iterations must be > 0")
	ErrBadMBits      = errors.New("bloom: capacity must be a non zero multiple of 8 bits")
	ErrMaybePresent  = errors.New("bloom: element may already be present")

	ErrMBitsOverflow = errors.New("bloom: mBits overflows supported range")
)
