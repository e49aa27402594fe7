package db

import (
	"context"
	"sync"
)

// MemoryStore keeps the record in process memory. It backs tests and
// STORE=memory runs where nothing should outlive the process.
type MemoryStore struct {
	mu      sync.RWMutex
	data    []byte
	present bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWith returns a MemoryStore already holding data.
func NewMemoryStoreWith(data []byte) *MemoryStore {
	s := &MemoryStore{}
	s.data = append([]byte(nil), data...)
	s.present = true
	return s
}

func (s *MemoryStore) Load(_ context.Context) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.present {
		return nil, false, nil
	}
	return append([]byte(nil), s.data...), true, nil
}

func (s *MemoryStore) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	s.data = append([]byte(nil), data...)
	s.present = true
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
