package batched

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chainTarget is a root that moves along applied entries.
type chainTarget struct {
	root    [32]byte
	seq     uint64
	refuse  map[uint64]error
	applied []PendingEntry
}

func (c *chainTarget) Root() [32]byte         { return c.root }
func (c *chainTarget) SequenceNumber() uint64 { return c.seq }

func (c *chainTarget) ApplyPending(e PendingEntry) error {
	if err := c.refuse[e.HashChainIndex]; err != nil {
		return err
	}
	c.root = e.NewRoot
	c.seq++
	c.applied = append(c.applied, e)
	return nil
}

func newPending(t *testing.T, capacity uint64) *PendingChangelog {
	t.Helper()
	p, _, err := NewPendingChangelogAt(make([]byte, PendingChangelogBytes(capacity)), capacity)
	require.NoError(t, err)
	return p
}

func entry(from, to uint64, zkp, seq uint64) PendingEntry {
	return PendingEntry{OldRoot: val(from), NewRoot: val(to), HashChainIndex: zkp, ExpectedSequenceNumber: seq}
}

func TestPendingReplayOrdering(t *testing.T) {
	p := newPending(t, 4)
	target := &chainTarget{root: val(0)}

	// root1 -> root2 arrives before root0 -> root1
	_, err := p.Upsert(entry(1, 2, 1, 1), target.seq)
	require.NoError(t, err)
	_, err = p.Upsert(entry(0, 1, 0, 0), target.seq)
	require.NoError(t, err)

	applied, dropped := p.ApplyPending(target)
	assert.Len(t, applied, 1)
	assert.Empty(t, dropped)
	assert.Equal(t, val(1), target.root)

	applied, dropped = p.ApplyPending(target)
	assert.Len(t, applied, 1)
	assert.Empty(t, dropped)

	applied, _ = p.ApplyPending(target)
	assert.Len(t, applied, 0)

	assert.Equal(t, val(2), target.root)
	assert.Equal(t, uint64(2), target.seq)
	assert.Equal(t, uint64(0), p.Len())
}

func TestPendingReplayUntilQuiet(t *testing.T) {
	p := newPending(t, 4)
	target := &chainTarget{root: val(0)}
	for _, e := range []PendingEntry{entry(2, 3, 2, 2), entry(1, 2, 1, 1), entry(0, 1, 0, 0)} {
		_, err := p.Upsert(e, 0)
		require.NoError(t, err)
	}
	applied, dropped := p.Replay(target)
	assert.Len(t, applied, 3)
	assert.Empty(t, dropped)
	assert.Equal(t, val(3), target.root)
}

func TestPendingLastWriteWins(t *testing.T) {
	p := newPending(t, 4)
	first := entry(1, 2, 1, 1)
	second := entry(1, 22, 1, 1)

	superseded, err := p.Upsert(first, 0)
	require.NoError(t, err)
	assert.Nil(t, superseded)

	superseded, err = p.Upsert(second, 0)
	require.NoError(t, err)
	require.NotNil(t, superseded)
	assert.Equal(t, first, *superseded)
	assert.Equal(t, []PendingEntry{second}, p.Entries())
}

func TestPendingDropsUnsatisfiable(t *testing.T) {
	p := newPending(t, 4)
	target := &chainTarget{root: val(5), seq: 3}
	refused := errors.New("refused")
	target.refuse = map[uint64]error{7: refused}

	stale := entry(4, 5, 0, 2)
	wrongRoot := entry(9, 6, 1, 3)
	future := entry(6, 7, 2, 4)
	for _, e := range []PendingEntry{stale, wrongRoot, future} {
		_, err := p.Upsert(e, 0)
		require.NoError(t, err)
	}

	applied, dropped := p.ApplyPending(target)
	assert.Empty(t, applied)
	require.Len(t, dropped, 2)
	assert.Equal(t, stale, dropped[0].Entry)
	assert.ErrorIs(t, dropped[0].Err, ErrStaleChangelogEntry)
	assert.Equal(t, wrongRoot, dropped[1].Entry)
	assert.ErrorIs(t, dropped[1].Err, ErrRootMismatch)
	assert.Equal(t, []PendingEntry{future}, p.Entries())

	_, err := p.Upsert(entry(5, 6, 7, 3), 3)
	require.NoError(t, err)
	applied, dropped = p.ApplyPending(target)
	assert.Empty(t, applied)
	require.Len(t, dropped, 1)
	assert.ErrorIs(t, dropped[0].Err, refused)
}

func TestPendingFull(t *testing.T) {
	p := newPending(t, 2)
	_, err := p.Upsert(entry(0, 1, 0, 5), 0)
	require.NoError(t, err)
	_, err = p.Upsert(entry(1, 2, 1, 6), 0)
	require.NoError(t, err)

	_, err = p.Upsert(entry(2, 3, 2, 7), 0)
	require.ErrorIs(t, err, ErrPendingChangelogFull)
	assert.Equal(t, KindCapacity, Kind(err))

	// entries for sequence numbers already passed make room
	_, err = p.Upsert(entry(2, 3, 2, 7), 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), p.Len())
}

func TestPendingReopen(t *testing.T) {
	buf := make([]byte, PendingChangelogBytes(3))
	p, _, err := NewPendingChangelogAt(buf, 3)
	require.NoError(t, err)
	_, err = p.Upsert(entry(0, 1, 0, 1), 0)
	require.NoError(t, err)

	q, _, err := PendingChangelogFromBytesAt(buf)
	require.NoError(t, err)
	assert.Equal(t, p.Entries(), q.Entries())
	assert.Equal(t, uint64(3), q.Capacity())
}
