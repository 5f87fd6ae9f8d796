package keyring

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	zkeyring "github.com/zalando/go-keyring"
)

// SystemProvider implements Provider using the OS-native credential store
// (Keychain on macOS, Credential Manager on Windows, Secret Service on Linux)
// via the zalando/go-keyring library.
type SystemProvider struct{}

// NewSystemProvider creates a new system keyring provider.
func NewSystemProvider() *SystemProvider {
	return &SystemProvider{}
}

// Set stores a key-value pair in the OS keyring.
func (*SystemProvider) Set(service, key, value string) error {
	if err := zkeyring.Set(service, key, value); err != nil {
		return fmt.Errorf("failed to store key in OS keyring: %w", err)
	}
	return nil
}

// Get retrieves a value from the OS keyring.
func (*SystemProvider) Get(service, key string) (string, error) {
	value, err := zkeyring.Get(service, key)
	if err != nil {
		if errors.Is(err, zkeyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read key from OS keyring: %w", err)
	}
	return value, nil
}

// Delete removes a specific key from the OS keyring.
func (*SystemProvider) Delete(service, key string) error {
	if err := zkeyring.Delete(service, key); err != nil {
		if errors.Is(err, zkeyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete key from OS keyring: %w", err)
	}
	return nil
}

// IsAvailable tests if the OS keyring is functional by performing a
// set/get/delete round trip with a throwaway key.
func (p *SystemProvider) IsAvailable() bool {
	const service = "tenantgate-keyring-check"
	testKey := generateUniqueTestKey()

	if err := p.Set(service, testKey, "ok"); err != nil {
		return false
	}
	_, getErr := p.Get(service, testKey)
	_ = p.Delete(service, testKey)
	return getErr == nil
}

// Name returns a human-readable name for this backend
func (*SystemProvider) Name() string {
	return "OS Keyring"
}

// generateUniqueTestKey creates a unique key name used for keyring
// availability checks. It combines a timestamp and random bytes to prevent
// naming collisions when multiple checks run concurrently.
func generateUniqueTestKey() string {
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return fmt.Sprintf("tenantgate-keyring-test-%d", time.Now().UnixNano())
	}

	return fmt.Sprintf("tenantgate-keyring-test-%d-%x", time.Now().UnixNano(), randomBytes)
}
