package zerocopy

import (
	"encoding/binary"
	"unsafe"
)

func readU64LE(b []byte) uint64     { return binary.LittleEndian.Uint64(b) }
func writeU64LE(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }

// AlignUp rounds n up to the next multiple of align. align must be a power of
// two.
func AlignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

// checkAligned fails if the first byte of buf is not aligned to align.
func checkAligned(buf []byte, align int) error {
	if align <= 1 || len(buf) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	if addr%uintptr(align) != 0 {
		return ErrUnalignedPointer
	}
	return nil
}
