package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/grind-ai/grind/internal/errors"
)

// Reminder is a note the user asked to be told about at DueAt.
type Reminder struct {
	ID      string
	Content string
	DueAt   time.Time
}

// ReminderStore persists reminders until they are delivered.
type ReminderStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewReminderStore creates a reminder store on db.
func NewReminderStore(db *sql.DB) *ReminderStore {
	return &ReminderStore{db: db, now: time.Now}
}

// Add saves a reminder and returns it with its generated ID.
func (r *ReminderStore) Add(ctx context.Context, content string, dueAt time.Time) (Reminder, error) {
	if r == nil || r.db == nil {
		return Reminder{}, fmt.Errorf("reminder store not initialized")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Reminder{}, fmt.Errorf("reminder content required")
	}

	rem := Reminder{
		ID:      uuid.New().String(),
		Content: content,
		DueAt:   dueAt.Truncate(time.Second),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reminders (id, content, due_at, created_at)
		VALUES (?, ?, ?, ?)
	`, rem.ID, rem.Content, rem.DueAt.Unix(), r.now().Unix())
	if err != nil {
		return Reminder{}, errors.Store(err, errors.CodeStoreWrite, "add reminder")
	}
	return rem, nil
}

// PopDue removes and returns every reminder due at or before now, oldest
// first. The delete and the read are one statement, so a reminder is
// handed to at most one caller.
func (r *ReminderStore) PopDue(ctx context.Context, now time.Time) ([]Reminder, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("reminder store not initialized")
	}

	rows, err := r.db.QueryContext(ctx, `
		DELETE FROM reminders WHERE due_at <= ?
		RETURNING id, content, due_at
	`, now.Unix())
	if err != nil {
		return nil, errors.Store(err, errors.CodeStoreWrite, "pop due reminders")
	}
	defer rows.Close()

	var due []Reminder
	for rows.Next() {
		var rem Reminder
		var dueAt int64
		if err := rows.Scan(&rem.ID, &rem.Content, &dueAt); err != nil {
			return nil, errors.Store(err, errors.CodeStoreRead, "scan reminder")
		}
		rem.DueAt = time.Unix(dueAt, 0).In(now.Location())
		due = append(due, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Store(err, errors.CodeStoreRead, "pop due reminders")
	}

	// RETURNING order is unspecified.
	sort.SliceStable(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })
	return due, nil
}

// Pending returns the number of reminders not yet delivered.
func (r *ReminderStore) Pending(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reminders`).Scan(&n); err != nil {
		return 0, errors.Store(err, errors.CodeStoreRead, "count reminders")
	}
	return n, nil
}
