package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/halcyonlabs/reverie/pkg/models"
)

// Well-known keys for the two persisted records.
const (
	keyVersion = "state_version"
	keyEntries = "journal_entries"
	keyProfile = "pattern_profile"
)

// SQLiteConfig holds SQLite backend configuration.
type SQLiteConfig struct {
	Path     string
	MaxConns int
	WALMode  bool
}

// SQLiteBackend persists the journal state in a single key/value table.
// It is still flat two-record storage, just on a medium that survives
// partial writes.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (and if needed initializes) the database.
func NewSQLiteBackend(cfg SQLiteConfig) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.WALMode {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS journal_state (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal_state table: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// Read assembles the state from the well-known keys. Missing keys mean an
// empty journal.
func (b *SQLiteBackend) Read() (State, error) {
	var state State

	version, ok, err := b.get(keyVersion)
	if err != nil {
		return State{}, err
	}
	if ok {
		if err := json.Unmarshal([]byte(version), &state.Version); err != nil {
			return State{}, fmt.Errorf("parse state version: %w", err)
		}
	}

	entries, ok, err := b.get(keyEntries)
	if err != nil {
		return State{}, err
	}
	if ok {
		if err := json.Unmarshal([]byte(entries), &state.Entries); err != nil {
			return State{}, fmt.Errorf("parse journal entries: %w", err)
		}
	}

	profile, ok, err := b.get(keyProfile)
	if err != nil {
		return State{}, err
	}
	if ok {
		var p models.PatternProfile
		if err := json.Unmarshal([]byte(profile), &p); err != nil {
			return State{}, fmt.Errorf("parse pattern profile: %w", err)
		}
		state.Profile = &p
	}

	return state, nil
}

// Write stores both records in one transaction.
func (b *SQLiteBackend) Write(state State) error {
	entries, err := json.Marshal(state.Entries)
	if err != nil {
		return fmt.Errorf("encode journal entries: %w", err)
	}
	version, err := json.Marshal(state.Version)
	if err != nil {
		return fmt.Errorf("encode state version: %w", err)
	}

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	defer tx.Rollback()

	const upsert = `INSERT OR REPLACE INTO journal_state (key, value) VALUES (?, ?)`
	if _, err := tx.Exec(upsert, keyVersion, string(version)); err != nil {
		return fmt.Errorf("write state version: %w", err)
	}
	if _, err := tx.Exec(upsert, keyEntries, string(entries)); err != nil {
		return fmt.Errorf("write journal entries: %w", err)
	}

	if state.Profile != nil {
		profile, err := json.Marshal(state.Profile)
		if err != nil {
			return fmt.Errorf("encode pattern profile: %w", err)
		}
		if _, err := tx.Exec(upsert, keyProfile, string(profile)); err != nil {
			return fmt.Errorf("write pattern profile: %w", err)
		}
	} else {
		if _, err := tx.Exec(`DELETE FROM journal_state WHERE key = ?`, keyProfile); err != nil {
			return fmt.Errorf("clear pattern profile: %w", err)
		}
	}

	return tx.Commit()
}

// Reset erases both records.
func (b *SQLiteBackend) Reset() error {
	if _, err := b.db.Exec(`DELETE FROM journal_state`); err != nil {
		return fmt.Errorf("reset journal state: %w", err)
	}
	return nil
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func (b *SQLiteBackend) get(key string) (string, bool, error) {
	var value string
	err := b.db.QueryRow(`SELECT value FROM journal_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return value, true, nil
}
