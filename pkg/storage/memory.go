package storage

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store. All kinds share process lifetime, so
// localStorage and sessionStorage behave identically here. It is the
// default backend and the one tests use.
type MemoryStore struct {
	mu    sync.RWMutex
	kinds map[string]map[string]any
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{kinds: make(map[string]map[string]any)}
}

func (s *MemoryStore) Put(_ context.Context, kind, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.kinds[kind]
	if !ok {
		bucket = make(map[string]any)
		s.kinds[kind] = bucket
	}
	bucket[key] = value
	return nil
}

func (s *MemoryStore) Get(_ context.Context, kind, key string) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket, ok := s.kinds[kind]
	if !ok {
		return nil, false, nil
	}
	v, ok := bucket[key]
	return v, ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, kind, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bucket, ok := s.kinds[kind]; ok {
		delete(bucket, key)
	}
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
