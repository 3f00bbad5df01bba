package index

import "sync"

// Store holds the process-wide active index. Ingestion swaps the pointer
// wholesale under the lock; readers take one snapshot and use it for the
// whole query, so a concurrent ingest can never expose a half-built index.
type Store struct {
	mu      sync.RWMutex
	current *Index
}

func NewStore() *Store {
	return &Store{}
}

// Swap replaces the active index. The previous one is simply dropped.
func (s *Store) Swap(ix *Index) {
	s.mu.Lock()
	s.current = ix
	s.mu.Unlock()
}

// Snapshot returns the active index, nil before any ingest.
func (s *Store) Snapshot() *Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
