package keychain

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

// memBackend is an in-memory backend for tests.
type memBackend struct {
	items map[string]string
}

func newMemBackend() *memBackend {
	return &memBackend{items: map[string]string{}}
}

func (m *memBackend) Set(key, value string) error {
	m.items[key] = value
	return nil
}

func (m *memBackend) Get(key string) (string, error) {
	v, ok := m.items[key]
	if !ok {
		return "", keyring.ErrKeyNotFound
	}
	return v, nil
}

func (m *memBackend) Delete(key string) error {
	if _, ok := m.items[key]; !ok {
		return keyring.ErrKeyNotFound
	}
	delete(m.items, key)
	return nil
}

func TestSaveAndLoad(t *testing.T) {
	mgr := NewManagerWithBackend(newMemBackend())

	if err := mgr.SaveManagementKey("sk-md-secret"); err != nil {
		t.Fatalf("save: %v", err)
	}
	key, err := mgr.LoadManagementKey()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if key != "sk-md-secret" {
		t.Errorf("key = %q, want sk-md-secret", key)
	}
}

func TestLoad_NotFound(t *testing.T) {
	mgr := NewManagerWithBackend(newMemBackend())

	_, err := mgr.LoadManagementKey()
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSave_EmptyRejected(t *testing.T) {
	mgr := NewManagerWithBackend(newMemBackend())

	if err := mgr.SaveManagementKey(""); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestClear(t *testing.T) {
	mgr := NewManagerWithBackend(newMemBackend())

	if err := mgr.SaveManagementKey("sk-md-secret"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := mgr.ClearManagementKey(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := mgr.LoadManagementKey(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
}

func TestClear_NotStored(t *testing.T) {
	mgr := NewManagerWithBackend(newMemBackend())

	if err := mgr.ClearManagementKey(); err != nil {
		t.Fatalf("clearing an absent key should not error: %v", err)
	}
}
