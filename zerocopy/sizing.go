package zerocopy

const (
	// HeaderBytes is the header size shared by Vec and CyclicVec.
	HeaderBytes = 24
	// SliceHeaderBytes is the header size of a Slice.
	SliceHeaderBytes = 8

	// RegionAlign is the alignment every region is padded to.
	RegionAlign = 8

	lenOff    = 0
	capOff    = 8
	cursorOff = 16
)

// DataBytes returns the padded size of capacity elements of elemSize bytes.
func DataBytes(capacity uint64, elemSize int) uint64 {
	return AlignUp(capacity*uint64(elemSize), RegionAlign)
}

// VecBytes returns the region size of a Vec with the given capacity.
func VecBytes(capacity uint64, elemSize int) uint64 {
	return HeaderBytes + DataBytes(capacity, elemSize)
}

// CyclicVecBytes returns the region size of a CyclicVec with the given
// capacity.
func CyclicVecBytes(capacity uint64, elemSize int) uint64 {
	return HeaderBytes + DataBytes(capacity, elemSize)
}

// SliceBytes returns the region size of a Slice of n elements.
func SliceBytes(n uint64, elemSize int) uint64 {
	return SliceHeaderBytes + DataBytes(n, elemSize)
}

// maxElements returns how many elements of elemSize bytes fit in n bytes.
func maxElements(n uint64, elemSize int) uint64 {
	if elemSize <= 0 {
		return n
	}
	return n / uint64(elemSize)
}
