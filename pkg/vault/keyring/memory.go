package keyring

import (
	"fmt"
	"sync"
)

// MemoryProvider is an in-memory keyring implementation. It is suitable for
// tests and for development on systems without a usable credential store;
// nothing it holds survives the process.
type MemoryProvider struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemoryProvider creates an empty in-memory keyring.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{secrets: make(map[string]string)}
}

func memoryKey(service, key string) string {
	return fmt.Sprintf("%s\x00%s", service, key)
}

// Set stores a key-value pair in memory.
func (m *MemoryProvider) Set(service, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[memoryKey(service, key)] = value
	return nil
}

// Get retrieves a value from memory.
func (m *MemoryProvider) Get(service, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.secrets[memoryKey(service, key)]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Delete removes a specific key from memory.
func (m *MemoryProvider) Delete(service, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.secrets[memoryKey(service, key)]; !ok {
		return ErrNotFound
	}
	delete(m.secrets, memoryKey(service, key))
	return nil
}

// IsAvailable always reports true for the in-memory backend.
func (*MemoryProvider) IsAvailable() bool {
	return true
}

// Name returns a human-readable name for this backend
func (*MemoryProvider) Name() string {
	return "In-Memory (non-persistent)"
}
