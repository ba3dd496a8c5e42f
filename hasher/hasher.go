package hasher

import (
	"errors"
	"fmt"
)

const (
	// HashBytes is the width of every digest and every input part.
	HashBytes = 32
	// MaxHeight is the largest tree height the zero bytes table covers.
	MaxHeight = 40
)

var (
	ErrInvalidInputLength = errors.New("hasher: input part longer than 32 bytes")
	ErrSerialization      = errors.New("hasher: input is not a canonical field element")
	ErrTooManyInputs      = errors.New("hasher: too many input parts")
	ErrNoInputs           = errors.New("hasher: no input parts")
)

// Kind identifies a hasher implementation.
type Kind uint8

const (
	KindPoseidon Kind = iota
	KindKeccak
	KindSha256
)

func (k Kind) String() string {
	switch k {
	case KindPoseidon:
		return "poseidon"
	case KindKeccak:
		return "keccak"
	case KindSha256:
		return "sha256"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Hasher hashes one or more parts of at most 32 bytes each.
type Hasher interface {
	Kind() Kind
	Hash(parts ...[]byte) ([32]byte, error)
}

// Hash2 hashes two 32 byte nodes, the common case for merkle parents.
func Hash2(h Hasher, left, right [32]byte) ([32]byte, error) {
	return h.Hash(left[:], right[:])
}

// New returns the hasher for kind.
func New(kind Kind) (Hasher, error) {
	switch kind {
	case KindPoseidon:
		return Poseidon{}, nil
	case KindKeccak:
		return Keccak{}, nil
	case KindSha256:
		return Sha256{}, nil
	default:
		return nil, fmt.Errorf("hasher: unknown kind %d", kind)
	}
}

func checkParts(parts [][]byte) error {
	if len(parts) == 0 {
		return ErrNoInputs
	}
	for i, p := range parts {
		if len(p) > HashBytes {
			return fmt.Errorf("%w: part %d has %d bytes", ErrInvalidInputLength, i, len(p))
		}
	}
	return nil
}
