package concurrent

import (
	"encoding/binary"
	"fmt"

	"github.com/forestrie/go-batchedmerkle/hasher"
	"github.com/forestrie/go-batchedmerkle/zerocopy"
)

// Tree is a concurrent merkle tree view over a caller owned buffer.
type Tree struct {
	h         hasher.Hasher
	zero      *hasher.ZeroBytesTable
	height    uint32
	header    []byte
	frontier  *zerocopy.Slice[[32]byte]
	roots     *zerocopy.CyclicVec[[32]byte]
	changelog *zerocopy.CyclicVec[ChangelogEntry]
}

// NewLeafInfo describes the state right after an append or update.
type NewLeafInfo struct {
	LeafIndex      uint64
	ChangelogIndex uint64
	RootIndex      uint64
	SequenceNumber uint64
	Root           [32]byte
}

func checkGeometry(height uint32, changelogCapacity, rootsCapacity uint64) error {
	if height == 0 {
		return ErrHeightZero
	}
	if height > MaxHeight {
		return fmt.Errorf("%w: %d > %d", ErrHeightTooLarge, height, MaxHeight)
	}
	if changelogCapacity == 0 {
		return ErrChangelogZero
	}
	if rootsCapacity == 0 {
		return ErrRootsZero
	}
	return nil
}

// New initializes an empty tree in buf. The empty root and an all empty
// changelog entry are pushed, so a fresh tree has sequence number 0 and root
// and changelog index 0.
func New(buf []byte, h hasher.Hasher, height uint32, changelogCapacity, rootsCapacity uint64) (*Tree, error) {
	if err := checkGeometry(height, changelogCapacity, rootsCapacity); err != nil {
		return nil, err
	}
	if err := zerocopy.CheckSize(buf, AccountBytes(height, changelogCapacity, rootsCapacity)); err != nil {
		return nil, err
	}
	zero, err := hasher.ZeroBytes(h)
	if err != nil {
		return nil, err
	}

	t := &Tree{h: h, zero: zero, height: height, header: buf[:HeaderBytes]}
	clear(t.header)
	binary.LittleEndian.PutUint64(t.header[heightOff:], uint64(height))

	rest := buf[HeaderBytes:]
	if t.frontier, rest, err = zerocopy.NewSliceAt(rest, uint64(height), zerocopy.Bytes32); err != nil {
		return nil, err
	}
	if t.roots, rest, err = zerocopy.NewCyclicVecAt(rest, rootsCapacity, zerocopy.Bytes32); err != nil {
		return nil, err
	}
	if t.changelog, _, err = zerocopy.NewCyclicVecAt(rest, changelogCapacity, zerocopy.Codec[ChangelogEntry](changelogCodec{height: int(height)})); err != nil {
		return nil, err
	}

	empty := ChangelogEntry{Path: make([][32]byte, height)}
	for i := range empty.Path {
		empty.Path[i] = zero[i]
	}
	t.changelog.Push(empty)
	t.roots.Push(zero[height])
	return t, nil
}

// FromBytes re-opens a tree previously initialized with New.
func FromBytes(buf []byte, h hasher.Hasher) (*Tree, error) {
	if err := zerocopy.CheckSize(buf, HeaderBytes); err != nil {
		return nil, err
	}
	height64 := binary.LittleEndian.Uint64(buf[heightOff:])
	if height64 == 0 || height64 > MaxHeight {
		return nil, fmt.Errorf("%w: height %d", ErrInvalidHeader, height64)
	}
	zero, err := hasher.ZeroBytes(h)
	if err != nil {
		return nil, err
	}
	t := &Tree{h: h, zero: zero, height: uint32(height64), header: buf[:HeaderBytes]}

	rest := buf[HeaderBytes:]
	if t.frontier, rest, err = zerocopy.SliceFromBytesAt(rest, zerocopy.Bytes32); err != nil {
		return nil, err
	}
	if t.frontier.Len() != height64 {
		return nil, fmt.Errorf("%w: frontier has %d levels, want %d", ErrInvalidHeader, t.frontier.Len(), height64)
	}
	if t.roots, rest, err = zerocopy.CyclicVecFromBytesAt(rest, zerocopy.Bytes32); err != nil {
		return nil, err
	}
	if t.changelog, _, err = zerocopy.CyclicVecFromBytesAt(rest, zerocopy.Codec[ChangelogEntry](changelogCodec{height: int(height64)})); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) Height() uint32            { return t.height }
func (t *Tree) Capacity() uint64          { return uint64(1) << t.height }
func (t *Tree) NextIndex() uint64         { return binary.LittleEndian.Uint64(t.header[nextIndexOff:]) }
func (t *Tree) SequenceNumber() uint64    { return binary.LittleEndian.Uint64(t.header[sequenceNumberOff:]) }
func (t *Tree) RootIndex() uint64         { return t.roots.LastIndex() }
func (t *Tree) ChangelogIndex() uint64    { return t.changelog.LastIndex() }
func (t *Tree) RootsCapacity() uint64     { return t.roots.Capacity() }
func (t *Tree) ChangelogCapacity() uint64 { return t.changelog.Capacity() }

// Root returns the current root.
func (t *Tree) Root() [32]byte {
	r, _ := t.roots.Last()
	return r
}

// RootAt returns the root held in history slot i.
func (t *Tree) RootAt(i uint64) ([32]byte, bool) { return t.roots.Get(i) }

// RightmostLeaf returns the most recently appended leaf.
func (t *Tree) RightmostLeaf() [32]byte {
	var leaf [32]byte
	copy(leaf[:], t.header[rightmostLeafOff:rightmostLeafOff+32])
	return leaf
}

// Changelog returns the entry in changelog slot i.
func (t *Tree) Changelog(i uint64) (ChangelogEntry, bool) { return t.changelog.Get(i) }

func (t *Tree) setNextIndex(v uint64) {
	binary.LittleEndian.PutUint64(t.header[nextIndexOff:], v)
}

func (t *Tree) incSequenceNumber() uint64 {
	seq := t.SequenceNumber() + 1
	binary.LittleEndian.PutUint64(t.header[sequenceNumberOff:], seq)
	return seq
}

func (t *Tree) setRightmostLeaf(leaf [32]byte) {
	copy(t.header[rightmostLeafOff:rightmostLeafOff+32], leaf[:])
}

func (t *Tree) frontierAt(level uint32) [32]byte {
	v, _ := t.frontier.Get(uint64(level))
	return v
}

// Append adds leaf at NextIndex.
func (t *Tree) Append(leaf [32]byte) (NewLeafInfo, error) {
	info, _, err := t.append(leaf, false)
	return info, err
}

// AppendWithProof adds leaf and also returns its inclusion proof against the
// new root.
func (t *Tree) AppendWithProof(leaf [32]byte) (NewLeafInfo, [][32]byte, error) {
	return t.append(leaf, true)
}

// AppendBatch appends leaves in order. Either every leaf is appended or none
// is.
func (t *Tree) AppendBatch(leaves [][32]byte) ([]NewLeafInfo, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyLeaves
	}
	if uint64(len(leaves)) > t.changelog.Capacity() {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchGreaterThanChangelog, len(leaves), t.changelog.Capacity())
	}
	if t.NextIndex()+uint64(len(leaves)) > t.Capacity() {
		return nil, ErrTreeFull
	}
	infos := make([]NewLeafInfo, 0, len(leaves))
	for _, leaf := range leaves {
		info, _, err := t.append(leaf, false)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (t *Tree) append(leaf [32]byte, withProof bool) (NewLeafInfo, [][32]byte, error) {
	index := t.NextIndex()
	if index >= t.Capacity() {
		return NewLeafInfo{}, nil, ErrTreeFull
	}

	var proof [][32]byte
	if withProof {
		proof = make([][32]byte, t.height)
	}
	entry := ChangelogEntry{Path: make([][32]byte, t.height), Index: index}
	frontier := make([][32]byte, t.height)

	cur := leaf
	for level := uint32(0); level < t.height; level++ {
		entry.Path[level] = cur
		frontier[level] = t.frontierAt(level)

		var err error
		if (index>>level)&1 == 0 {
			frontier[level] = cur
			if withProof {
				proof[level] = t.zero[level]
			}
			cur, err = hasher.Hash2(t.h, cur, t.zero[level])
		} else {
			if withProof {
				proof[level] = frontier[level]
			}
			cur, err = hasher.Hash2(t.h, frontier[level], cur)
		}
		if err != nil {
			return NewLeafInfo{}, nil, err
		}
	}

	for level, node := range frontier {
		_ = t.frontier.Set(uint64(level), node)
	}
	info := t.commit(entry, cur)
	t.setNextIndex(index + 1)
	t.setRightmostLeaf(leaf)
	return info, proof, nil
}

// commit pushes entry and root and bumps the sequence number.
func (t *Tree) commit(entry ChangelogEntry, root [32]byte) NewLeafInfo {
	changelogIndex := t.changelog.Push(entry)
	rootIndex := t.roots.Push(root)
	seq := t.incSequenceNumber()
	return NewLeafInfo{
		LeafIndex:      entry.Index,
		ChangelogIndex: changelogIndex,
		RootIndex:      rootIndex,
		SequenceNumber: seq,
		Root:           root,
	}
}

// UpdateProofFromChangelog patches proof for leafIndex with every changelog
// entry written after changelogIndex.
func (t *Tree) UpdateProofFromChangelog(changelogIndex uint64, leafIndex uint64, proof [][32]byte) error {
	if changelogIndex >= t.changelog.Len() {
		return fmt.Errorf("%w: %d", ErrInvalidChangelogIndex, changelogIndex)
	}
	if changelogIndex == t.changelog.LastIndex() {
		return nil
	}
	start := (changelogIndex + 1) % t.changelog.Capacity()
	var patchErr error
	err := t.changelog.IterFrom(start, func(_ uint64, e ChangelogEntry) bool {
		patchErr = e.UpdateProof(leafIndex, proof)
		return patchErr == nil
	})
	if err != nil {
		return err
	}
	return patchErr
}

// ValidateProof checks proof for leaf against the current root.
func (t *Tree) ValidateProof(leaf [32]byte, leafIndex uint64, proof [][32]byte) error {
	return t.validateAgainst(t.Root(), leaf, leafIndex, proof)
}

// ValidateProofAtRoot checks proof for leaf against the root held in history
// slot rootIndex. A slot holding no root fails with ErrRootNotInHistory,
// which also matches ErrInvalidProof.
func (t *Tree) ValidateProofAtRoot(rootIndex uint64, leaf [32]byte, leafIndex uint64, proof [][32]byte) error {
	root, ok := t.roots.Get(rootIndex)
	if !ok {
		return fmt.Errorf("%w: %w: %d", ErrInvalidProof, ErrRootNotInHistory, rootIndex)
	}
	return t.validateAgainst(root, leaf, leafIndex, proof)
}

func (t *Tree) validateAgainst(root [32]byte, leaf [32]byte, leafIndex uint64, proof [][32]byte) error {
	if len(proof) != int(t.height) {
		return fmt.Errorf("%w: got=%d, want=%d", ErrInvalidProofLength, len(proof), t.height)
	}
	computed, err := ComputeRoot(t.h, leaf, leafIndex, proof)
	if err != nil {
		return err
	}
	if computed != root {
		return &InvalidProofError{Expected: root, Computed: computed}
	}
	return nil
}

// Update replaces oldLeaf at leafIndex with newLeaf. proof may have been
// taken when the newest changelog slot was changelogIndex; it is patched
// forward before validation. The caller's proof slice is not modified.
func (t *Tree) Update(changelogIndex uint64, oldLeaf, newLeaf [32]byte, leafIndex uint64, proof [][32]byte) (NewLeafInfo, error) {
	if len(proof) != int(t.height) {
		return NewLeafInfo{}, fmt.Errorf("%w: got=%d, want=%d", ErrInvalidProofLength, len(proof), t.height)
	}
	if leafIndex >= t.NextIndex() {
		return NewLeafInfo{}, fmt.Errorf("%w: leaf %d, next index %d", ErrCannotUpdateEmpty, leafIndex, t.NextIndex())
	}
	patched := append([][32]byte(nil), proof...)
	if err := t.UpdateProofFromChangelog(changelogIndex, leafIndex, patched); err != nil {
		return NewLeafInfo{}, err
	}
	if err := t.ValidateProof(oldLeaf, leafIndex, patched); err != nil {
		return NewLeafInfo{}, err
	}
	return t.updateLeaf(newLeaf, leafIndex, patched)
}

func (t *Tree) updateLeaf(leaf [32]byte, leafIndex uint64, proof [][32]byte) (NewLeafInfo, error) {
	entry := ChangelogEntry{Path: make([][32]byte, t.height), Index: leafIndex}
	cur := leaf
	for level := uint32(0); level < t.height; level++ {
		entry.Path[level] = cur
		var err error
		if (leafIndex>>level)&1 == 0 {
			cur, err = hasher.Hash2(t.h, cur, proof[level])
		} else {
			cur, err = hasher.Hash2(t.h, proof[level], cur)
		}
		if err != nil {
			return NewLeafInfo{}, err
		}
	}

	// the frontier is the proof of the next append, so it is patched the
	// same way a caller's proof would be
	next := t.NextIndex()
	if next < t.Capacity() {
		frontier := make([][32]byte, t.height)
		for level := range frontier {
			frontier[level] = t.frontierAt(uint32(level))
		}
		if err := entry.UpdateProof(next, frontier); err != nil {
			return NewLeafInfo{}, err
		}
		for level, node := range frontier {
			_ = t.frontier.Set(uint64(level), node)
		}
	}
	if leafIndex == next-1 {
		t.setRightmostLeaf(leaf)
	}
	return t.commit(entry, cur), nil
}

// ComputeRoot folds leaf up through proof.
func ComputeRoot(h hasher.Hasher, leaf [32]byte, leafIndex uint64, proof [][32]byte) ([32]byte, error) {
	cur := leaf
	for level, sibling := range proof {
		var err error
		if (leafIndex>>uint(level))&1 == 0 {
			cur, err = hasher.Hash2(h, cur, sibling)
		} else {
			cur, err = hasher.Hash2(h, sibling, cur)
		}
		if err != nil {
			return [32]byte{}, err
		}
	}
	return cur, nil
}
