package hasher

import (
	"crypto/sha256"

	"golang.org/x/crypto/sha3"
)

// Keccak is legacy Keccak-256, as used by ethereum.
type Keccak struct{}

func (Keccak) Kind() Kind { return KindKeccak }

func (Keccak) Hash(parts ...[]byte) ([32]byte, error) {
	var out [32]byte
	if err := checkParts(parts); err != nil {
		return out, err
	}
	d := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		d.Write(p)
	}
	d.Sum(out[:0])
	return out, nil
}

// Sha256 is SHA-256 over the concatenated parts.
type Sha256 struct{}

func (Sha256) Kind() Kind { return KindSha256 }

func (Sha256) Hash(parts ...[]byte) ([32]byte, error) {
	var out [32]byte
	if err := checkParts(parts); err != nil {
		return out, err
	}
	d := sha256.New()
	for _, p := range parts {
		d.Write(p)
	}
	d.Sum(out[:0])
	return out, nil
}
