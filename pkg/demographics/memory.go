package demographics

import (
	"context"
	"sync"
)

type memoryEntry struct {
	naccid string
	key    string
}

// MemoryStore is the in-memory Store used in tests and local
// development.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []memoryEntry
	byKey   map[string][]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byKey: make(map[string][]int)}
}

func (s *MemoryStore) FindMatches(ctx context.Context, fingerprint Fingerprint) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	indexes := s.byKey[fingerprint.Key]
	naccids := make([]string, 0, len(indexes))
	for _, i := range indexes {
		naccids = append(naccids, s.entries[i].naccid)
	}
	return naccids, nil
}

func (s *MemoryStore) Add(ctx context.Context, naccid string, fingerprint Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, memoryEntry{naccid: naccid, key: fingerprint.Key})
	s.byKey[fingerprint.Key] = append(s.byKey[fingerprint.Key], len(s.entries)-1)
	return nil
}
