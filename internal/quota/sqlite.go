package quota

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DaaanielTV/hosting-club-discord-bot/internal/logger"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists creations in SQLite. A full in-memory copy is
// kept alongside so a failed insert cannot make Count go backwards
// within a process (the panel server exists either way).
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	limits map[string][]string
}

// NewSQLiteStore opens (or creates) the database at path. If a legacy
// server_limits.json sits next to it, its contents are imported once
// and the file renamed to .bak.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, limits: make(map[string][]string)}

	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	s.migrateFromJSON(filepath.Join(dir, "server_limits.json"))

	if err := s.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load quota records: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS servers (
			user_id     TEXT NOT NULL,
			instance_id TEXT NOT NULL,
			created_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_servers_user ON servers(user_id);
	`)
	return err
}

// migrateFromJSON imports the legacy flat-file mapping if it exists
func (s *SQLiteStore) migrateFromJSON(jsonPath string) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return // file doesn't exist or unreadable
	}

	var legacy map[string][]string
	if err := json.Unmarshal(data, &legacy); err != nil {
		logger.Warn("[Quota] Failed to parse legacy %s for migration: %v", jsonPath, err)
		return
	}

	if len(legacy) == 0 {
		return
	}

	count := 0
	now := time.Now().Format(time.RFC3339)
	for userID, instances := range legacy {
		for _, id := range instances {
			if _, err := s.db.Exec(
				`INSERT INTO servers (user_id, instance_id, created_at) VALUES (?, ?, ?)`,
				userID, id, now,
			); err != nil {
				logger.Warn("[Quota] Failed to migrate record %s/%s: %v", userID, id, err)
				continue
			}
			count++
		}
	}

	bakPath := jsonPath + ".bak"
	if err := os.Rename(jsonPath, bakPath); err != nil {
		logger.Warn("[Quota] Failed to rename %s to %s: %v", jsonPath, bakPath, err)
	} else {
		logger.Info("[Quota] Migrated %d records from %s to SQLite", count, jsonPath)
	}
}

// load reads all records into the in-memory map, preserving insertion
// order per user.
func (s *SQLiteStore) load() error {
	rows, err := s.db.Query(`SELECT user_id, instance_id FROM servers ORDER BY rowid`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var userID, instanceID string
		if err := rows.Scan(&userID, &instanceID); err != nil {
			return err
		}
		s.limits[userID] = append(s.limits[userID], instanceID)
	}
	return rows.Err()
}

func (s *SQLiteStore) Count(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limits[userID])
}

func (s *SQLiteStore) HasCapacity(userID string, max int) bool {
	return s.Count(userID) < max
}

func (s *SQLiteStore) RecordCreation(userID, instanceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.limits[userID] = append(s.limits[userID], instanceID)

	if _, err := s.db.Exec(
		`INSERT INTO servers (user_id, instance_id, created_at) VALUES (?, ?, ?)`,
		userID, instanceID, time.Now().Format(time.RFC3339),
	); err != nil {
		logger.Error("[Quota] Failed to persist record %s/%s: %v", userID, instanceID, err)
	}
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
