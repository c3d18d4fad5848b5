// Package keychain stores the SolidData management key in the OS credential
// store so it does not have to live in .env files on shared machines.
//
// Only the management key is persisted. Bearer tokens are short-lived and are
// held in memory for the duration of a run, never written anywhere.
package keychain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/99designs/keyring"
)

// ServiceName identifies the keychain/credential store namespace.
const ServiceName = "solidquery"

// KeyManagementKey is the item key under which the management key is stored.
const KeyManagementKey = "soliddata_management_key"

// ErrNotFound is returned when no management key is stored.
var ErrNotFound = errors.New("keychain: management key not found")

// backend abstracts the keyring so tests can substitute an in-memory store.
type backend interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// Manager provides thread-safe access to the stored management key.
type Manager struct {
	mu      sync.RWMutex
	backend backend
}

// NewManager opens the OS keyring. On platforms without a native credential
// store, the keyring library falls back to an encrypted file backend.
func NewManager() (*Manager, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("keychain: open keyring: %w", err)
	}
	return &Manager{backend: &ringBackend{ring: ring}}, nil
}

// NewManagerWithBackend creates a Manager over a custom backend. Intended for tests.
func NewManagerWithBackend(b backend) *Manager {
	return &Manager{backend: b}
}

// SaveManagementKey stores the management key.
func (m *Manager) SaveManagementKey(key string) error {
	if key == "" {
		return errors.New("keychain: refusing to store an empty management key")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.backend.Set(KeyManagementKey, key); err != nil {
		return fmt.Errorf("keychain: save management key: %w", err)
	}
	return nil
}

// LoadManagementKey retrieves the stored management key, or ErrNotFound.
func (m *Manager) LoadManagementKey() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, err := m.backend.Get(KeyManagementKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("keychain: load management key: %w", err)
	}
	if key == "" {
		return "", ErrNotFound
	}
	return key, nil
}

// ClearManagementKey removes the stored management key. Removing a key that
// is not present is not an error.
func (m *Manager) ClearManagementKey() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.backend.Delete(KeyManagementKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("keychain: clear management key: %w", err)
	}
	return nil
}

// ringBackend adapts keyring.Keyring to the backend interface.
type ringBackend struct {
	ring keyring.Keyring
}

func (r *ringBackend) Set(key, value string) error {
	return r.ring.Set(keyring.Item{Key: key, Data: []byte(value)})
}

func (r *ringBackend) Get(key string) (string, error) {
	it, err := r.ring.Get(key)
	if err != nil {
		return "", err
	}
	return string(it.Data), nil
}

func (r *ringBackend) Delete(key string) error {
	return r.ring.Remove(key)
}
