package hasher

import (
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/ff"
	"github.com/iden3/go-iden3-crypto/poseidon"
)

// MaxPoseidonInputs is the widest Poseidon permutation supported.
const MaxPoseidonInputs = 16

// Poseidon is the circom compatible Poseidon hash over the BN254 scalar
// field.
type Poseidon struct{}

func (Poseidon) Kind() Kind { return KindPoseidon }

func (Poseidon) Hash(parts ...[]byte) ([32]byte, error) {
	var out [32]byte
	if err := checkParts(parts); err != nil {
		return out, err
	}
	if len(parts) > MaxPoseidonInputs {
		return out, fmt.Errorf("%w: %d > %d", ErrTooManyInputs, len(parts), MaxPoseidonInputs)
	}

	inputs := make([]*big.Int, len(parts))
	for i, p := range parts {
		x := new(big.Int).SetBytes(p)
		if !IsInFieldBig(x) {
			return out, fmt.Errorf("%w: part %d", ErrSerialization, i)
		}
		inputs[i] = x
	}
	res, err := poseidon.Hash(inputs)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	res.FillBytes(out[:])
	return out, nil
}

// FieldModulus returns the BN254 scalar field modulus.
func FieldModulus() *big.Int {
	return ff.Modulus()
}

// IsInFieldBig reports whether x is a canonical field element.
func IsInFieldBig(x *big.Int) bool {
	return x.Sign() >= 0 && x.Cmp(ff.Modulus()) < 0
}

// IsInField reports whether the big-endian value v is a canonical field
// element.
func IsInField(v [32]byte) bool {
	return IsInFieldBig(new(big.Int).SetBytes(v[:]))
}
