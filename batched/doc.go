// Package batched implements batched merkle tree accounts.
//
// A state tree account holds the root history of a tree of height up to 40,
// an input queue of nullifiers and a pending changelog. Its output queue
// account holds new leaves. An address tree account holds an input queue of
// new addresses instead. The trees themselves are kept off chain: queued
// values are grouped into zkp batches, each committed to by a hash chain,
// and a proof for a zkp batch moves the root to the new root it attests to.
//
// Account layout, all integers little-endian, every region 8 byte aligned:
//
//	discriminator      8   "BatchMta", "BatchAdr" or "queueacc"
//	metadata           224 access, rollover (Option<u64> is tag + 8 bytes),
//	                       associated queue, next tree (232 for queues)
//	header             104 tree type, sequence number, next index, height,
//	                       root history capacity, capacity, hasher, then the
//	                       batch metadata (72 for queues)
//	root history       cyclic vector of 32 byte roots (trees only)
//	batches            slice of 88 byte batch records
//	values             one vector per batch (output queues only)
//	bloom filters      one byte slice per batch (input queues only)
//	hash chains        one vector per batch, one chain per zkp batch
//	pending changelog  vector of deferred updates (trees only)
//
// Each batch cycles Fill -> Full -> Inserted -> Fill. Values queued in an
// input queue are checked against the bloom filters of every batch so a
// value cannot be queued twice while it may still be unproven. A filter is
// wiped once its batch is inserted and the next batch is less than half
// full; roots that could still prove against the wiped batch are zeroed.
package batched
