// Package memory handles all persistent storage using SQLite.
//
// One database file holds the user's preferences, pending reminders and
// the conversation log used for context retrieval.
package memory

import (
	"database/sql"

	// SQLite driver (required for database/sql registration).
	_ "github.com/mattn/go-sqlite3"

	"github.com/grind-ai/grind/internal/errors"
)

// Store owns the SQLite connection shared by every store in this package.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at the given path.
// Creates the database and tables if they don't exist.
func Open(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, errors.Store(err, errors.CodeStoreOpen, "open "+path)
	}

	store := &Store{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, errors.Store(err, errors.CodeStoreMigration, "init schema")
	}

	return store, nil
}

// openDB opens a single SQLite database with optimal settings.
func openDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// Writers are serialised by SQLite anyway; one connection keeps
	// DELETE ... RETURNING pops and upserts strictly ordered.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

const schema = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
);

CREATE TABLE IF NOT EXISTS preferences (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS reminders (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	due_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(due_at);

CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	input TEXT NOT NULL,
	response TEXT NOT NULL,
	document TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'conversation',
	timestamp TEXT NOT NULL,
	embedding BLOB,
	embedding_model TEXT
);
CREATE INDEX IF NOT EXISTS idx_conversations_timestamp ON conversations(timestamp);
`

func (s *Store) init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return ensureSchemaVersion(s.db, 1, "Initial GRIND schema")
}

func ensureSchemaVersion(db *sql.DB, version int, description string) error {
	var current sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&current); err != nil {
		return err
	}

	if !current.Valid || int(current.Int64) < version {
		_, err := db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			version,
			description,
		)
		return err
	}

	return nil
}
