package concurrent

/*

# Concurrent merkle tree over a caller owned buffer

A concurrent merkle tree stores only what an append-heavy writer needs: the
frontier (one "filled subtree" per level), a bounded history of roots, and a
bounded changelog of the paths written by recent operations. Leaves are not
stored.

## Buffer layout

	+-------------------------+  0
	| height          u64 LE  |
	| next_index      u64 LE  |
	| sequence_number u64 LE  |
	| rightmost_leaf  [32]    |
	| reserved        u64     |
	+-------------------------+  HeaderBytes (64)
	| frontier  Slice[[32]]   |  height entries
	+-------------------------+
	| roots     CyclicVec     |  [32] per root
	+-------------------------+
	| changelog CyclicVec     |  index u64 | path [height][32]
	+-------------------------+

AccountBytes gives the exact size for a geometry.

## Changelog and proof patching

Every append and update pushes one ChangelogEntry holding the new leaf and
every node on its path below the root. A caller that fetched a proof when the
newest changelog slot was c can still update a leaf later: each entry written
after c intersects the caller's path at exactly one level, the level where the
two leaf indices first differ from the top,

	critbit = bits.Len64(a ^ b) - 1

and the entry's node at that level replaces the stale sibling. Once the
changelog wraps past c the patch is incomplete and the proof fails
validation against the current root.

*/
