package bloom

/*

# Bloom primitives for batch queues (in-place)

This package provides primitive building blocks for Bloom filters that live
inside a preallocated account region. Each batch of an input queue owns one
bitset, sized by the tree's bloom filter capacity (in bits), and the caller
passes that bitset slice directly.

It mirrors the `zerocopy` style:

- small, composable functions
- explicit byte layouts
- index arithmetic on byte slices
- a burden of knowledge on the caller for hot paths

## What Bloom filters are (and are not)

Bloom filters provide a *probabilistic prefilter*:

- If the filter says "definitely not present", then the element is not present.
- If the filter says "maybe present", then the element may or may not be present
  (false positives are possible).

The batched queue uses "maybe present" as a rejection: a value that might
already be queued in a batch whose filter has not been wiped is refused. A
false positive therefore costs a spurious rejection, never a double spend.

## Indexing and bit numbering

Bit positions are derived by double hashing:

	sum     = SHA-256( 0xB0 || elem32 )
	h1, h2  = BE64(sum[0:8]), BE64(sum[8:16])    (h2 forced non zero)
	bit_i   = (h1 + i*h2) mod mBits              for i in [0, k)

Bit j lives in byte j>>3 at position j&7, least significant bit first.

## API versioning: why the `V1` suffix exists

Functions in this package are suffixed with a format version (for example
`InsertV1`, `MaybeContainsV1`). The suffix fixes the hashing and bit
numbering rules so persisted filters keep their meaning if those rules ever
change.

*/
