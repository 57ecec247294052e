package store

import (
	"bytes"
	"context"
	"sync"
)

// MemoryStore is a process-local Store. Nothing survives a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, slot string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.slots[slot]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return bytes.Clone(data), nil
}

func (s *MemoryStore) Save(_ context.Context, slot string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot] = bytes.Clone(data)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
