package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps every key in one JSON object on disk, rewritten on each Set.
type FileStore struct {
	filePath string
	values   map[string]string
	mu       sync.RWMutex
}

func NewFileStore(filePath string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &FileStore{
		filePath: filePath,
		values:   make(map[string]string),
	}

	if err := store.load(); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	return store, nil
}

func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	return value, ok, nil
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return s.save()
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) load() error {
	file, err := os.Open(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open settings file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&s.values); err != nil {
		return fmt.Errorf("failed to decode settings: %w", err)
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}
	return nil
}

// save writes to a temp file and renames it over the old one.
func (s *FileStore) save() error {
	tmp := s.filePath + ".tmp"
	file, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.values); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close settings file: %w", err)
	}
	return os.Rename(tmp, s.filePath)
}
