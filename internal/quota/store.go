// Package quota tracks which panel servers each Discord user has
// created and enforces the per-user cap.
package quota

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/DaaanielTV/hosting-club-discord-bot/internal/logger"
)

// Store is the bookkeeping interface the provisioning flow depends on.
// RecordCreation must not fail the caller: by the time it runs the panel
// server already exists, so persistence problems are logged and the
// in-memory count kept, never rolled back.
type Store interface {
	Count(userID string) int
	HasCapacity(userID string, max int) bool
	RecordCreation(userID, instanceID string)
}

// FileStore keeps the user -> server-identifiers mapping in a single
// JSON file, rewritten whole on every update.
type FileStore struct {
	path   string
	mu     sync.Mutex
	limits map[string][]string
}

// NewFileStore loads the mapping from path, creating an empty file if
// none exists.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	s := &FileStore{path: path, limits: make(map[string][]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
		return s, nil
	}

	if err := json.Unmarshal(data, &s.limits); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return s, nil
}

func (s *FileStore) Count(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limits[userID])
}

func (s *FileStore) HasCapacity(userID string, max int) bool {
	return s.Count(userID) < max
}

func (s *FileStore) RecordCreation(userID, instanceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.limits[userID] = append(s.limits[userID], instanceID)

	data, err := json.MarshalIndent(s.limits, "", "  ")
	if err != nil {
		logger.Error("[Quota] Failed to encode %s: %v", s.path, err)
		return
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		logger.Error("[Quota] Failed to save %s: %v", s.path, err)
	}
}
