package treetesting

import (
	"github.com/google/uuid"

	"github.com/forestrie/go-batchedmerkle/batched"
)

// FieldValue returns a random value below 2^248. Such values are canonical
// field elements for every supported hasher.
func (c *TestContext) FieldValue() [32]byte {
	var v [32]byte
	_, _ = c.Rand.Read(v[1:])
	return v
}

// FieldValues returns n distinct random field values.
func (c *TestContext) FieldValues(n int) [][32]byte {
	seen := make(map[[32]byte]bool, n)
	values := make([][32]byte, 0, n)
	for len(values) < n {
		v := c.FieldValue()
		if seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	return values
}

// Pubkey returns a random account key drawn from the test RNG.
func (c *TestContext) Pubkey() batched.Pubkey {
	id, err := uuid.NewRandomFromReader(c.Rand)
	if err != nil {
		c.T.Fatalf("pubkey: %v", err)
	}
	return batched.PubkeyFromUUID(id)
}
