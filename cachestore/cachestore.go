// Package cachestore backs the Executor's cache_fs (ModuleKey -> cached
// source text) as a second tier behind its in-process map. The Automock
// Generator Adapter's mock_metadata_cache is not stored here; it stays in
// policy.Engine's in-process map. It generalizes the
// dao.Dao interface and its CreateMongoDao/CreateLocalDao constructor pair
// (src/dao/dao.go) to a plain key/value cache rather than a job store.
package cachestore

import "context"

// Store is a key/value cache over opaque byte payloads. The caller encodes
// whatever it is caching (the runtime stores module source text) before Put and
// decodes after Get.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys returns every key currently held, for cachegc's sweep.
	Keys(ctx context.Context) ([]string, error)
}

// MemoryStore is an in-process Store, the default when no external cache
// backend is configured (config.CacheBackendMemory).
type MemoryStore struct {
	entries map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string][]byte{}}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	m.entries[key] = value
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) Keys(_ context.Context) ([]string, error) {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys, nil
}
