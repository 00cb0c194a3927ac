package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"linkcore/internal/models"
)

const defaultHistoryLimit = 2048

// StatusHistory persists committed connection statuses to disk.
type StatusHistory struct {
	mu      sync.RWMutex
	path    string
	limit   int
	history []models.StatusSample
}

// NewStatusHistory initialises storage and loads existing samples if present.
// An empty path keeps history in memory only.
func NewStatusHistory(path string, limit int) (*StatusHistory, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	store := &StatusHistory{path: path, limit: limit}
	if path == "" {
		return store, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

// Record appends a status committed at ts.
func (s *StatusHistory) Record(status models.ConnectionStatus, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, models.StatusSample{Status: status, CommittedAt: ts.UTC()})
	if len(s.history) > s.limit {
		s.history = s.history[len(s.history)-s.limit:]
	}
	return s.persistLocked()
}

// Latest returns the newest sample.
func (s *StatusHistory) Latest() (models.StatusSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.history) == 0 {
		return models.StatusSample{}, false
	}
	return s.history[len(s.history)-1], true
}

// History returns a copy of the stored samples.
func (s *StatusHistory) History() []models.StatusSample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.history) == 0 {
		return nil
	}
	out := make([]models.StatusSample, len(s.history))
	copy(out, s.history)
	return out
}

// HistoryN returns at most the n newest samples.
func (s *StatusHistory) HistoryN(n int) []models.StatusSample {
	all := s.History()
	if n <= 0 || len(all) <= n {
		return all
	}
	return all[len(all)-n:]
}

// HistorySince returns samples committed at or after cutoff.
func (s *StatusHistory) HistorySince(cutoff time.Time) []models.StatusSample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := sort.Search(len(s.history), func(i int) bool {
		return !s.history[i].CommittedAt.Before(cutoff)
	})
	if idx >= len(s.history) {
		return nil
	}
	out := make([]models.StatusSample, len(s.history)-idx)
	copy(out, s.history[idx:])
	return out
}

func (s *StatusHistory) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.history = nil
			return nil
		}
		return fmt.Errorf("read connectivity history: %w", err)
	}
	if len(data) == 0 {
		s.history = nil
		return nil
	}

	var entries []models.StatusSample
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse connectivity history: %w", err)
	}
	if len(entries) > s.limit {
		entries = entries[len(entries)-s.limit:]
	}
	s.history = entries
	return nil
}

func (s *StatusHistory) persistLocked() error {
	if s.path == "" {
		return nil
	}
	bytes, err := json.MarshalIndent(s.history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode connectivity history: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, bytes, 0o644); err != nil {
		return fmt.Errorf("write temp connectivity history: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace connectivity history file: %w", err)
	}
	return nil
}
