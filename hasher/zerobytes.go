package hasher

import (
	"fmt"
	"sync"
)

// ZeroBytesTable holds the root of an empty subtree for each height 0 through
// MaxHeight. Level 0 is the empty leaf, all zeros.
type ZeroBytesTable [MaxHeight + 1][32]byte

var zeroBytes [3]struct {
	once  sync.Once
	table ZeroBytesTable
	err   error
}

// ZeroBytes returns the empty subtree table for h. The table is computed on
// first use and shared afterwards.
func ZeroBytes(h Hasher) (*ZeroBytesTable, error) {
	k := h.Kind()
	if int(k) >= len(zeroBytes) {
		return nil, fmt.Errorf("hasher: no zero bytes for kind %v", k)
	}
	z := &zeroBytes[k]
	z.once.Do(func() {
		for i := 1; i <= MaxHeight; i++ {
			z.table[i], z.err = Hash2(h, z.table[i-1], z.table[i-1])
			if z.err != nil {
				return
			}
		}
	})
	if z.err != nil {
		return nil, z.err
	}
	return &z.table, nil
}

// ZeroRoot returns the root of an empty tree of the given height.
func ZeroRoot(h Hasher, height uint32) ([32]byte, error) {
	if height > MaxHeight {
		return [32]byte{}, fmt.Errorf("hasher: height %d exceeds %d", height, MaxHeight)
	}
	z, err := ZeroBytes(h)
	if err != nil {
		return [32]byte{}, err
	}
	return z[height], nil
}
