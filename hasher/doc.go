// Package hasher provides the 32 byte hash functions used by the trees.
//
// All trees are parameterised by a Hasher. Poseidon over the BN254 scalar
// field is the production choice because the batch circuits recompute the
// same hashes; Keccak and Sha256 exist for tests and for callers that do not
// prove anything in a circuit.
//
// Every input part is at most 32 bytes. Poseidon additionally requires each
// part, read big-endian, to be a canonical field element. Inputs that break
// these rules are rejected with an error and never truncated.
package hasher
