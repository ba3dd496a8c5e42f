package batched

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pad8(n uint64) uint64 { return (n + 7) / 8 * 8 }

// expectedTreeBytes spells out the tree account layout region by region.
func expectedTreeBytes(bs, bloomCap, zkp, rhc, nb uint64) uint64 {
	nzkp := bs / zkp
	n := uint64(8 + 224 + 104)
	n += 24 + 32*rhc
	n += 8 + 88*nb
	n += nb * (8 + pad8(bloomCap/8))
	n += nb * (24 + 32*nzkp)
	n += 24 + 120*nb*nzkp
	return n
}

func expectedQueueBytes(bs, zkp, nb uint64) uint64 {
	n := uint64(8 + 232 + 72)
	n += 8 + 88*nb
	n += nb * (24 + 32*bs)
	n += nb * (24 + 32*(bs/zkp))
	return n
}

func TestAccountSizing(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10_000; i++ {
		zkp := 1 + r.Uint64()%500
		bs := zkp * (1 + r.Uint64()%100)
		bloomCap := 8 * (1 + r.Uint64()%200_000)
		rhc := 1 + r.Uint64()%200
		nb := 1 + r.Uint64()%4
		height := uint32(1 + r.Intn(MaxHeight))

		require.Equal(t, expectedTreeBytes(bs, bloomCap, zkp, rhc, nb),
			TreeAccountBytes(height, bs, bloomCap, zkp, rhc, nb), "tuple %d", i)
		require.Equal(t, expectedQueueBytes(bs, zkp, nb),
			OutputQueueBytes(bs, zkp, nb), "tuple %d", i)
	}
}

func TestAccountSizingMatchesLayout(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 25; i++ {
		p := testParams()
		p.ZkpBatchSize = 1 + r.Uint64()%4
		p.BatchSize = p.ZkpBatchSize * (1 + r.Uint64()%4)
		p.BloomFilterCapacity = 8 * (1 + r.Uint64()%64)
		p.RootHistoryCapacity = 1 + r.Uint64()%8
		p.NumBatches = 1 + r.Uint64()%3
		p.OutputQueueZkpBatchSize = 1 + r.Uint64()%4
		p.OutputQueueBatchSize = p.OutputQueueZkpBatchSize * (1 + r.Uint64()%4)
		p.OutputQueueNumBatches = 1 + r.Uint64()%3

		treeBytes, queueBytes := p.TreeAccountBytes(), p.OutputQueueBytes()

		_, _, err := InitStateTree(make([]byte, treeBytes), make([]byte, queueBytes), NewPubkey(), NewPubkey(), p, 1, 1)
		require.NoError(t, err, "exact allocation %+v", p)

		_, _, err = InitStateTree(make([]byte, treeBytes+64), make([]byte, queueBytes+64), NewPubkey(), NewPubkey(), p, 1, 1)
		require.NoError(t, err, "over allocation %+v", p)

		_, _, err = InitStateTree(make([]byte, treeBytes-1), make([]byte, queueBytes), NewPubkey(), NewPubkey(), p, 1, 1)
		assert.Equal(t, KindLayout, Kind(err))
		_, _, err = InitStateTree(make([]byte, treeBytes), make([]byte, queueBytes-1), NewPubkey(), NewPubkey(), p, 1, 1)
		assert.Equal(t, KindLayout, Kind(err))
	}
}
