package accountstore

import (
	"context"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

type testStore interface {
	Store
	PathLister
}

func storesUnderTest(t *testing.T) map[string]testStore {
	ps, err := OpenPebbleStore(t.TempDir())
	assert.NilError(t, err)
	t.Cleanup(func() { _ = ps.Close() })
	return map[string]testStore{
		"memory": NewMemoryStore(),
		"pebble": ps,
	}
}

func TestStoreOptimisticConcurrency(t *testing.T) {
	ctx := context.Background()
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			path := "v1/batchedmerkle/0/trees/a.acc"

			_, _, err := s.Get(ctx, path)
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = s.Put(ctx, path, []byte{1}, "not-an-etag")
			assert.ErrorIs(t, err, ErrNotFound)

			etag1, err := s.Put(ctx, path, []byte{1, 2, 3}, "")
			assert.NilError(t, err)
			assert.Assert(t, etag1 != "")

			_, err = s.Put(ctx, path, []byte{9}, "")
			assert.ErrorIs(t, err, ErrExistsOC)

			data, etag, err := s.Get(ctx, path)
			assert.NilError(t, err)
			assert.Equal(t, etag, etag1)
			assert.DeepEqual(t, data, []byte{1, 2, 3})

			etag2, err := s.Put(ctx, path, []byte{4, 5}, etag1)
			assert.NilError(t, err)
			assert.Assert(t, etag2 != etag1)

			// A writer holding the old etag must not clobber the update.
			_, err = s.Put(ctx, path, []byte{6}, etag1)
			assert.ErrorIs(t, err, ErrContentOC)

			data, etag, err = s.Get(ctx, path)
			assert.NilError(t, err)
			assert.Equal(t, etag, etag2)
			assert.DeepEqual(t, data, []byte{4, 5})
		})
	}
}

func TestStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Put(ctx, "p", []byte{1, 2}, "")
			assert.NilError(t, err)
			data, _, err := s.Get(ctx, "p")
			assert.NilError(t, err)
			data[0] = 7
			again, _, err := s.Get(ctx, "p")
			assert.NilError(t, err)
			assert.DeepEqual(t, again, []byte{1, 2})
		})
	}
}

func TestStorePaths(t *testing.T) {
	ctx := context.Background()
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			for _, p := range []string{"b/2", "a/1", "a/2", "c"} {
				_, err := s.Put(ctx, p, []byte{0}, "")
				assert.NilError(t, err)
			}
			paths, err := s.Paths("a/")
			assert.NilError(t, err)
			assert.DeepEqual(t, paths, []string{"a/1", "a/2"})

			paths, err = s.Paths("z/")
			assert.NilError(t, err)
			assert.Assert(t, is.Len(paths, 0))
		})
	}
}

func TestPebbleStoreClosed(t *testing.T) {
	s, err := OpenPebbleStore(t.TempDir())
	assert.NilError(t, err)
	assert.NilError(t, s.Close())
	_, _, err = s.Get(context.Background(), "p")
	assert.ErrorIs(t, err, ErrStoreNotOpened)
	assert.ErrorIs(t, s.Close(), ErrStoreNotOpened)
}

func TestPebbleStoreReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := OpenPebbleStore(dir)
	assert.NilError(t, err)
	etag, err := s.Put(ctx, "p", []byte{5}, "")
	assert.NilError(t, err)
	assert.NilError(t, s.Close())

	s, err = OpenPebbleStore(dir)
	assert.NilError(t, err)
	defer s.Close()
	data, got, err := s.Get(ctx, "p")
	assert.NilError(t, err)
	assert.Equal(t, got, etag)
	assert.DeepEqual(t, data, []byte{5})
}

func TestPrefixUpperBound(t *testing.T) {
	assert.DeepEqual(t, prefixUpperBound([]byte("a/")), []byte("a0"))
	assert.DeepEqual(t, prefixUpperBound([]byte{0x01, 0xff}), []byte{0x02})
	assert.Assert(t, prefixUpperBound([]byte{0xff, 0xff}) == nil)
}
