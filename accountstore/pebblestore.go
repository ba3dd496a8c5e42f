package accountstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
)

// PebbleStore keeps accounts in a local pebble database. The stored value
// is the etag, as a 16 byte uuid, followed by the account data.
//
// Pebble has no conditional write, so the etag check and the write are
// serialized here. A PebbleStore must be the only writer of its database.
type PebbleStore struct {
	mu sync.Mutex
	db *pebble.DB
}

func OpenPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open account store %s: %w", dir, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrStoreNotOpened
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *PebbleStore) read(path string) (uuid.UUID, []byte, error) {
	if s.db == nil {
		return uuid.Nil, nil, ErrStoreNotOpened
	}
	v, closer, err := s.db.Get([]byte(path))
	if errors.Is(err, pebble.ErrNotFound) {
		return uuid.Nil, nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, nil, err
	}
	defer closer.Close()
	if len(v) < len(uuid.Nil) {
		return uuid.Nil, nil, fmt.Errorf("account %s: stored value truncated", path)
	}
	etag, err := uuid.FromBytes(v[:len(uuid.Nil)])
	if err != nil {
		return uuid.Nil, nil, err
	}
	return etag, append([]byte(nil), v[len(uuid.Nil):]...), nil
}

func (s *PebbleStore) Get(_ context.Context, path string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	etag, data, err := s.read(path)
	if err != nil {
		return nil, "", err
	}
	return data, etag.String(), nil
}

func (s *PebbleStore) Put(_ context.Context, path string, data []byte, etag string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, _, err := s.read(path)
	switch {
	case errors.Is(err, ErrNotFound):
		if etag != "" {
			return "", ErrNotFound
		}
	case err != nil:
		return "", err
	case etag == "":
		return "", ErrExistsOC
	case cur.String() != etag:
		return "", ErrContentOC
	}

	next := uuid.New()
	v := make([]byte, 0, len(next)+len(data))
	v = append(v, next[:]...)
	v = append(v, data...)
	if err := s.db.Set([]byte(path), v, &pebble.WriteOptions{Sync: true}); err != nil {
		return "", err
	}
	return next.String(), nil
}

// Paths lists the stored paths with the given prefix.
func (s *PebbleStore) Paths(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrStoreNotOpened
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixUpperBound([]byte(prefix)),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var paths []string
	for iter.First(); iter.Valid(); iter.Next() {
		paths = append(paths, string(iter.Key()))
	}
	return paths, iter.Error()
}

// prefixUpperBound returns the smallest key greater than every key with
// the prefix, or nil if there is none.
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
