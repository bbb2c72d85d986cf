package storage

import (
	"errors"
	"fmt"
	"path/filepath"
)

// KeyValueStore persists small string values such as API keys.
type KeyValueStore interface {
	// Get returns the stored value; ok is false when the key was never set.
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Close() error
}

var ErrUnknownBackend = errors.New("unknown storage backend")

// Open returns the store for backend ("file" or "sqlite") rooted at dataDir.
func Open(backend, dataDir string) (KeyValueStore, error) {
	switch backend {
	case "", "file":
		return NewFileStore(filepath.Join(dataDir, "settings.json"))
	case "sqlite":
		return NewSQLiteStore(filepath.Join(dataDir, "settings.db"))
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
}
