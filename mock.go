package metacache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var (
	_ Service = (*Cache)(nil)
	_ Service = (*MockService)(nil)
)

// MockService is a simple in-memory cache for consumer tests. It keeps
// no TTL or eviction state and runs every factory inline.
type MockService struct {
	mu   sync.Mutex
	data map[Kind]map[string]Value
}

// NewMockService creates an empty mock cache.
func NewMockService() *MockService {
	return &MockService{
		data: map[Kind]map[string]Value{
			KindTrack:    {},
			KindAlbum:    {},
			KindExternal: {},
		},
	}
}

func (m *MockService) Get(tier Kind, key string) (Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[tier][key]
	return v, ok
}

func (m *MockService) Put(tier Kind, key string, value Value, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.data[tier]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	entries[key] = value
	return nil
}

func (m *MockService) GetOrCompute(ctx context.Context, tier Kind, key string, ttl time.Duration, factory Factory) (Value, error) {
	if v, ok := m.Get(tier, key); ok {
		return v, nil
	}
	v, err := factory(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.Put(tier, key, v, ttl); err != nil {
		return nil, err
	}
	return v, nil
}

func (m *MockService) Invalidate(tier Kind, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.data[tier]
	if !ok {
		return false
	}
	if _, present := entries[key]; !present {
		return false
	}
	delete(entries, key)
	return true
}

func (m *MockService) Stats(tier Kind) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.data[tier]
	if !ok {
		return Stats{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	return Stats{CurrentSize: len(entries)}, nil
}
