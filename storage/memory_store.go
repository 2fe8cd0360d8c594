package storage

import (
	"context"
	"sync"

	"github.com/astra-chain/mempool/digest"
)

// MemoryStore is a non-durable Store, used by tests and by callers that
// intentionally trade durability for zero setup cost.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[digest.Digest][]byte
	notifier *notifier
}

// NewMemoryStore returns an empty, ready-to-use MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:     make(map[digest.Digest][]byte),
		notifier: newNotifier(),
	}
}

func (m *MemoryStore) Read(_ context.Context, key digest.Digest) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Write(_ context.Context, key digest.Digest, value []byte) error {
	m.mu.Lock()
	if _, exists := m.data[key]; !exists {
		m.data[key] = value
	}
	m.mu.Unlock()
	m.notifier.publish(key, value)
	return nil
}

func (m *MemoryStore) NotifyRead(ctx context.Context, key digest.Digest) ([]byte, error) {
	if v, ok, _ := m.Read(ctx, key); ok {
		return v, nil
	}
	ch := m.notifier.subscribe(key)
	if v, ok, _ := m.Read(ctx, key); ok {
		return v, nil
	}
	return wait(ctx, ch)
}
