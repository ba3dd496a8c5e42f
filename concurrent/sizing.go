package concurrent

import "github.com/forestrie/go-batchedmerkle/zerocopy"

const (
	// MaxHeight is the largest supported tree height.
	MaxHeight = 32

	HeaderBytes = 64

	heightOff         = 0
	nextIndexOff      = 8
	sequenceNumberOff = 16
	rightmostLeafOff  = 24
)

// ChangelogEntryBytes returns the encoded size of one changelog entry.
func ChangelogEntryBytes(height uint32) int {
	return changelogCodec{height: int(height)}.Size()
}

// AccountBytes returns the buffer size needed for a tree of the given
// geometry.
func AccountBytes(height uint32, changelogCapacity uint64, rootsCapacity uint64) uint64 {
	return HeaderBytes +
		zerocopy.SliceBytes(uint64(height), 32) +
		zerocopy.CyclicVecBytes(rootsCapacity, 32) +
		zerocopy.CyclicVecBytes(changelogCapacity, ChangelogEntryBytes(height))
}
