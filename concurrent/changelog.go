package concurrent

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// ChangelogEntry records the path written by one operation. Path[0] is the
// leaf and Path[i] the node at level i; the root is kept in the root history.
type ChangelogEntry struct {
	Path  [][32]byte
	Index uint64
}

// UpdateProof patches proof, taken for leafIndex before this entry was
// written, so that it is valid after it.
func (e ChangelogEntry) UpdateProof(leafIndex uint64, proof [][32]byte) error {
	if e.Index == leafIndex {
		return fmt.Errorf("%w: leaf %d", ErrCannotUpdateLeaf, leafIndex)
	}
	crit := bits.Len64(leafIndex^e.Index) - 1
	if crit >= len(proof) || crit >= len(e.Path) {
		return fmt.Errorf("%w: critbit %d beyond height", ErrInvalidProofLength, crit)
	}
	proof[crit] = e.Path[crit]
	return nil
}

// changelogCodec encodes entries for a fixed height as index u64 LE followed
// by the path.
type changelogCodec struct {
	height int
}

func (c changelogCodec) Size() int  { return 8 + c.height*32 }
func (c changelogCodec) Align() int { return 8 }

func (c changelogCodec) Decode(b []byte) ChangelogEntry {
	e := ChangelogEntry{
		Index: binary.LittleEndian.Uint64(b[0:8]),
		Path:  make([][32]byte, c.height),
	}
	for i := range e.Path {
		copy(e.Path[i][:], b[8+i*32:8+(i+1)*32])
	}
	return e
}

func (c changelogCodec) Encode(b []byte, e ChangelogEntry) {
	binary.LittleEndian.PutUint64(b[0:8], e.Index)
	for i := 0; i < c.height; i++ {
		var node [32]byte
		if i < len(e.Path) {
			node = e.Path[i]
		}
		copy(b[8+i*32:8+(i+1)*32], node[:])
	}
}
