package storage

import (
	"context"
	"sync"
)

type MemoryProviderIndex struct {
	data map[string][]string
	mu   sync.RWMutex
}

func NewMemoryProviderIndex() ProviderIndex {
	return &MemoryProviderIndex{
		data: make(map[string][]string),
	}
}

func (s *MemoryProviderIndex) Append(ctx context.Context, target, referrer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[target] = append(s.data[target], referrer)
	return nil
}

// Providers returns a copy; callers may keep it after later appends.
func (s *MemoryProviderIndex) Providers(ctx context.Context, target string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := s.data[target]
	if len(found) == 0 {
		return []string{}, nil
	}
	out := make([]string, len(found))
	copy(out, found)
	return out, nil
}

func (s *MemoryProviderIndex) Close() error {
	return nil
}
