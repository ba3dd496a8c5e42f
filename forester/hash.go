package forester

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hash is a 32 byte value. It encodes as a 0x prefixed hex string in JSON
// and as a byte string in CBOR.
type Hash [32]byte

func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Hash) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(string(text), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != len(h) {
		return fmt.Errorf("hash: %d bytes, want %d", len(b), len(h))
	}
	copy(h[:], b)
	return nil
}

func hashes(values [][32]byte) []Hash {
	out := make([]Hash, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
