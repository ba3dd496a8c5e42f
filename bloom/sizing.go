package bloom

// MaxCapacityBitsV1 bounds the filter size so bit indices fit comfortably in
// the double hashing arithmetic.
const MaxCapacityBitsV1 = uint64(1) << 40

// CheckCapacityV1 validates a filter capacity given in bits.
func CheckCapacityV1(capacityBits uint64) error {
	if capacityBits == 0 || capacityBits%8 != 0 {
		return ErrBadMBits
	}
	if capacityBits > MaxCapacityBitsV1 {
		return ErrMBitsOverflow
	}
	return nil
}

// BitsetBytesV1 returns ceil(capacityBits/8).
func BitsetBytesV1(capacityBits uint64) uint64 {
	return (capacityBits + 7) / 8
}

// NumItersV1 returns the number of hash iterations that minimises the false
// positive rate for n elements in capacityBits, k = round(m/n * ln2), and at
// least 1.
func NumItersV1(capacityBits uint64, n uint64) uint64 {
	if n == 0 {
		return 1
	}
	// ln2 ~ 693147/1000000
	k := (capacityBits*693147/n + 500000) / 1000000
	if k == 0 {
		return 1
	}
	return k
}
