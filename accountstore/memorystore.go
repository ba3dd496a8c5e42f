package accountstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type memoryEntry struct {
	etag string
	data []byte
}

// MemoryStore keeps accounts in process memory. It is safe for concurrent
// use.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, path string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.accounts[path]
	if !ok {
		return nil, "", ErrNotFound
	}
	return append([]byte(nil), e.data...), e.etag, nil
}

func (s *MemoryStore) Put(_ context.Context, path string, data []byte, etag string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.accounts[path]
	switch {
	case etag == "" && ok:
		return "", ErrExistsOC
	case etag != "" && !ok:
		return "", ErrNotFound
	case etag != "" && e.etag != etag:
		return "", ErrContentOC
	}
	next := memoryEntry{etag: uuid.NewString(), data: append([]byte(nil), data...)}
	s.accounts[path] = next
	return next.etag, nil
}

// Paths lists the stored paths with the given prefix.
func (s *MemoryStore) Paths(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var paths []string
	for p := range s.accounts {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
