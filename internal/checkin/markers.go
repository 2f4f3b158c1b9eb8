package checkin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// MemoryMarkers keeps markers for the life of the process.
type MemoryMarkers struct {
	mu      sync.Mutex
	expires map[int64]time.Time
}

func NewMemoryMarkers() *MemoryMarkers {
	return &MemoryMarkers{expires: make(map[int64]time.Time)}
}

func (m *MemoryMarkers) Has(eventID int64, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.expires[eventID]
	return ok && now.Before(exp)
}

func (m *MemoryMarkers) Set(eventID int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[eventID] = now.Add(MarkerTTL)
	return nil
}

// FileMarkers persists markers as a JSON object of cookie name to expiry,
// so a command-line client remembers check-ins between runs.
type FileMarkers struct {
	path string
	mu   sync.Mutex
}

func NewFileMarkers(path string) *FileMarkers {
	return &FileMarkers{path: path}
}

func (m *FileMarkers) Has(eventID int64, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.read()
	if err != nil {
		return false
	}
	exp, ok := entries[MarkerName(eventID)]
	return ok && now.Before(exp)
}

func (m *FileMarkers) Set(eventID int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.read()
	if err != nil {
		return err
	}
	for name, exp := range entries {
		if !now.Before(exp) {
			delete(entries, name)
		}
	}
	entries[MarkerName(eventID)] = now.Add(MarkerTTL)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode markers: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("failed to create marker directory: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write markers: %w", err)
	}
	return nil
}

func (m *FileMarkers) read() (map[string]time.Time, error) {
	entries := make(map[string]time.Time)
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read markers: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode markers %s: %w", m.path, err)
	}
	return entries, nil
}

// ParseEventID accepts the numeric id used in check-in URLs.
func ParseEventID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid event id %q", s)
	}
	return id, nil
}
