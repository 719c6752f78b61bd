package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Keys persisted across runs
const (
	KeyTheme                  = "theme"
	KeyVisitor                = "shurahub_visitor"
	KeySearchTerm             = "reviewSearchTerm"
	KeySortBy                 = "reviewSortBy"
	KeyFirstAnalysisGenerated = "shurahub_first_analysis_generated"
)

// Preferences is the key/value view of the store used by UI code
type Preferences interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Store persists preferences, the guest identity and the local debate
// archive in a single SQLite file
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	mu     sync.Mutex
}

// Open opens (or creates) the SQLite database at path.
// Use ":memory:" for an ephemeral store.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database lives only as long as its connection
	db.SetMaxOpenConns(1)

	createPreferencesTable := `
	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`

	createTurnsTable := `
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		prompt TEXT NOT NULL,
		opener_model TEXT,
		opener_response TEXT,
		critiquer_model TEXT,
		critiquer_response TEXT,
		synthesizer_model TEXT,
		synthesizer_response TEXT,
		finished_at DATETIME
	);`

	if _, err := db.Exec(createPreferencesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create preferences table: %w", err)
	}

	if _, err := db.Exec(createTurnsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create turns table: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Get reads a preference. Missing keys and read failures both report false;
// failures are logged.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil {
		s.logger.Warn("failed to read preference", "key", key, "error", err)
		return "", false
	}
	return value, true
}

// Set writes a preference. Write failures are logged, never returned.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("INSERT OR REPLACE INTO preferences (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		s.logger.Warn("failed to write preference", "key", key, "error", err)
	}
}
