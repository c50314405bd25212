package inventory

import "sync"

// StorageKey is the single slot the collection is persisted under.
const StorageKey = "inventoryItems"

// Storage is a synchronous get/set-by-key string store.
// *db.KV satisfies it; MemoryStorage is the in-process variant.
type Storage interface {
	// Get returns the stored value and whether the key exists.
	Get(key string) (string, bool, error)
	// Set replaces the value under key.
	Set(key, value string) error
}

// MemoryStorage keeps values in a map. Safe for concurrent use.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
	writes int
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

// Get implements Storage.
func (m *MemoryStorage) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements Storage.
func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.writes++
	return nil
}

// Writes returns how many times Set has been called.
func (m *MemoryStorage) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
