package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/grind-ai/grind/internal/errors"
)

// KeyUserTitle is the preference holding how the user wants to be addressed.
const KeyUserTitle = "user_title"

// PreferenceStore is a persistent string key-value map. Last write wins.
type PreferenceStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPreferenceStore creates a preference store on db.
func NewPreferenceStore(db *sql.DB) *PreferenceStore {
	return &PreferenceStore{db: db, now: time.Now}
}

// Set stores or replaces a preference.
func (p *PreferenceStore) Set(ctx context.Context, key, value string) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("preference store not initialized")
	}
	if key == "" {
		return fmt.Errorf("key required")
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, p.now().Unix())
	if err != nil {
		return errors.Store(err, errors.CodeStoreWrite, "set preference "+key)
	}
	return nil
}

// Get returns the value for key, or "" if it was never set.
func (p *PreferenceStore) Get(ctx context.Context, key string) (string, error) {
	if p == nil || p.db == nil {
		return "", fmt.Errorf("preference store not initialized")
	}

	var value string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Store(err, errors.CodeStoreRead, "get preference "+key)
	}
	return value, nil
}

// GetOr returns the value for key, or fallback when unset.
func (p *PreferenceStore) GetOr(ctx context.Context, key, fallback string) (string, error) {
	v, err := p.Get(ctx, key)
	if err != nil || v == "" {
		return fallback, err
	}
	return v, nil
}
