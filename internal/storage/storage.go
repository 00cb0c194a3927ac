package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// KV is the key-value persistence contract used for small pieces of state
// such as the selected locale.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ErrEmptyKey is returned when a blank key is used.
var ErrEmptyKey = errors.New("storage: key cannot be empty")

// FileKV keeps all values in one JSON document on disk.
type FileKV struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
}

// NewFileKV creates a file-backed store and loads existing values if present.
func NewFileKV(path string) (*FileKV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}

	s := &FileKV{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the value stored under key.
func (s *FileKV) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	return value, ok, nil
}

// Set stores value under key and persists the document.
func (s *FileKV) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return s.persist()
}

// Delete removes key. Missing keys are not an error.
func (s *FileKV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.persist()
}

// Close is a no-op; every write is already on disk.
func (s *FileKV) Close() error { return nil }

func (s *FileKV) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.values = map[string]string{}
			return nil
		}
		return fmt.Errorf("read kv file: %w", err)
	}

	if len(data) == 0 {
		s.values = map[string]string{}
		return nil
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse kv file: %w", err)
	}

	s.values = values
	return nil
}

func (s *FileKV) persist() error {
	bytes, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode kv file: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, bytes, 0o600); err != nil {
		return fmt.Errorf("write temp kv file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace kv file: %w", err)
	}
	return nil
}
