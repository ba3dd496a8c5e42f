package zerocopy

/*

# Zero-copy typed views over caller-owned byte buffers

Every structure in this package is a *view*: it holds sub-slices of a buffer
owned by the caller and reads or writes elements in place. Nothing here
allocates element storage, so a tree or queue account can be persisted simply
by persisting its bytes.

There are three shapes:

	Vec[T]        bounded vector, push fails once full
	CyclicVec[T]  ring buffer, push overwrites the oldest element
	Slice[T]      fixed length region (batch records, bloom bitsets)

## Layout

Vec and CyclicVec share a 24 byte header:

	+--------------------+  0
	| len       u64 LE   |
	+--------------------+  8
	| capacity  u64 LE   |
	+--------------------+  16
	| cursor    u64 LE   |  (CyclicVec: physical index of the newest element)
	+--------------------+  24
	| capacity * size(T) |
	+--------------------+  rounded up to 8

Slice has an 8 byte header holding its length.

Every region is padded to a multiple of 8 bytes so that regions can be packed
back to back and each header stays naturally aligned.

## Opening

The NewXxxAt constructors initialize a header in place and return the unused
tail of the buffer. The XxxFromBytesAt functions re-open a previously
initialized region, validate the header against the buffer and likewise
return the tail. Chaining the returned tails is how account layouts are built.

*/
