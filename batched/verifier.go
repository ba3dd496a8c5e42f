package batched

import (
	"fmt"

	"github.com/forestrie/go-batchedmerkle/hasher"
)

// CircuitKind names the circuit a batch proof was generated for.
type CircuitKind uint8

const (
	CircuitBatchUpdate CircuitKind = iota + 1
	CircuitBatchAppend
	CircuitBatchAddressAppend
)

func (c CircuitKind) String() string {
	switch c {
	case CircuitBatchUpdate:
		return "batch-update"
	case CircuitBatchAppend:
		return "batch-append"
	case CircuitBatchAddressAppend:
		return "batch-address-append"
	default:
		return fmt.Sprintf("CircuitKind(%d)", uint8(c))
	}
}

// CompressedProof is an opaque compressed groth16 proof.
type CompressedProof struct {
	A [32]byte
	B [64]byte
	C [32]byte
}

// ProofVerifier checks a batch proof against its public input hash. The
// verifying key is selected by circuit and zkp batch size.
type ProofVerifier interface {
	Verify(circuit CircuitKind, batchSize uint64, publicInputHash [32]byte, proof CompressedProof) error
}

// VerifierFunc adapts a function to ProofVerifier.
type VerifierFunc func(circuit CircuitKind, batchSize uint64, publicInputHash [32]byte, proof CompressedProof) error

func (f VerifierFunc) Verify(circuit CircuitKind, batchSize uint64, publicInputHash [32]byte, proof CompressedProof) error {
	return f(circuit, batchSize, publicInputHash, proof)
}

func verify(v ProofVerifier, circuit CircuitKind, batchSize uint64, publicInputHash [32]byte, proof CompressedProof) error {
	if err := v.Verify(circuit, batchSize, publicInputHash, proof); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProofInvalid, circuit, err)
	}
	return nil
}

// NullifyPublicInput is the public input hash of a batch update proof.
func NullifyPublicInput(h hasher.Hasher, oldRoot, newRoot, leavesHashChain [32]byte) ([32]byte, error) {
	return hasher.HashChain(h, oldRoot, newRoot, leavesHashChain)
}

// AddressAppendPublicInput is the public input hash of an address append
// proof. nextIndex is the tree next index the batch is appended at.
func AddressAppendPublicInput(h hasher.Hasher, oldRoot, newRoot, leavesHashChain [32]byte, nextIndex uint64) ([32]byte, error) {
	return hasher.HashChain(h, oldRoot, newRoot, leavesHashChain, hasher.Uint64ToBytes32BE(nextIndex))
}

// AppendPublicInput is the public input hash of a batch append proof.
func AppendPublicInput(h hasher.Hasher, oldRoot, newRoot, leavesHashChain [32]byte, startIndex uint64) ([32]byte, error) {
	return hasher.HashChain(h, oldRoot, newRoot, leavesHashChain, hasher.Uint64ToBytes32BE(startIndex))
}
