package memory

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/grind-ai/grind/internal/errors"
)

// DocumentType tags every record written by the orchestrator.
const DocumentType = "conversation"

// Record is one user/assistant exchange.
type Record struct {
	ID        string
	Input     string
	Response  string
	Document  string // "input → response", the text that is searched
	Type      string
	Timestamp string // RFC 3339
}

// Time parses the record timestamp.
func (r Record) Time() (time.Time, error) {
	return time.Parse(time.RFC3339, r.Timestamp)
}

// Embedder turns text into a vector. Implementations call an external model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// ConversationStore is the append-only conversation log with similarity search.
type ConversationStore struct {
	db       *sql.DB
	embedder Embedder
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	entropy io.Reader
}

// ConversationOption customises a ConversationStore.
type ConversationOption func(*ConversationStore)

// WithEmbedder enables vector search. Without it Search falls back to keyword overlap.
func WithEmbedder(e Embedder) ConversationOption {
	return func(c *ConversationStore) { c.embedder = e }
}

// WithClock overrides the clock used for timestamps and IDs.
func WithClock(now func() time.Time) ConversationOption {
	return func(c *ConversationStore) { c.now = now }
}

// NewConversationStore creates a conversation store on db.
func NewConversationStore(db *sql.DB, logger *zap.Logger, opts ...ConversationOption) *ConversationStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &ConversationStore{
		db:      db,
		logger:  logger,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Document renders the searchable text of an exchange.
func Document(input, response string) string {
	return input + " → " + response
}

// Append stores an exchange. An embedding failure is logged and the
// record is kept without a vector.
func (c *ConversationStore) Append(ctx context.Context, input, response string) (Record, error) {
	if c == nil || c.db == nil {
		return Record{}, fmt.Errorf("conversation store not initialized")
	}

	now := c.now()
	rec := Record{
		ID:        c.newID(now),
		Input:     input,
		Response:  response,
		Document:  Document(input, response),
		Type:      DocumentType,
		Timestamp: now.Format(time.RFC3339),
	}

	var blob []byte
	var model sql.NullString
	if c.embedder != nil {
		vec, err := c.embedder.Embed(ctx, rec.Document)
		if err != nil {
			c.logger.Warn("embedding failed, storing without vector", zap.String("id", rec.ID), zap.Error(err))
		} else {
			blob = encodeEmbedding(vec)
			model = sql.NullString{String: c.embedder.Model(), Valid: true}
		}
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO conversations (id, input, response, document, type, timestamp, embedding, embedding_model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Input, rec.Response, rec.Document, rec.Type, rec.Timestamp, blob, model)
	if err != nil {
		return Record{}, errors.Store(err, errors.CodeStoreWrite, "append conversation")
	}
	return rec, nil
}

func (c *ConversationStore) newID(t time.Time) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), c.entropy).String()
}

// Search returns up to n records most similar to query, best first.
func (c *ConversationStore) Search(ctx context.Context, query string, n int) ([]Record, error) {
	if c == nil || c.db == nil {
		return nil, fmt.Errorf("conversation store not initialized")
	}
	if n <= 0 {
		return nil, nil
	}

	if c.embedder != nil {
		vec, err := c.embedder.Embed(ctx, query)
		if err == nil {
			hits, err := c.searchVectors(ctx, vec, n)
			if err != nil {
				return nil, err
			}
			if len(hits) > 0 {
				return hits, nil
			}
		} else {
			c.logger.Warn("query embedding failed, using keyword search", zap.Error(err))
		}
	}

	return c.searchKeywords(ctx, query, n)
}

// Get returns the record with the given ID.
func (c *ConversationStore) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := c.db.QueryRowContext(ctx, `
		SELECT id, input, response, document, type, timestamp FROM conversations WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Input, &rec.Response, &rec.Document, &rec.Type, &rec.Timestamp)
	if err != nil {
		return Record{}, errors.Store(err, errors.CodeStoreRead, "get conversation "+id)
	}
	return rec, nil
}

// Count returns the number of stored exchanges.
func (c *ConversationStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&n); err != nil {
		return 0, errors.Store(err, errors.CodeStoreRead, "count conversations")
	}
	return n, nil
}

func (c *ConversationStore) searchVectors(ctx context.Context, query []float32, n int) ([]Record, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, input, response, document, type, timestamp, embedding
		FROM conversations WHERE embedding IS NOT NULL
	`)
	if err != nil {
		return nil, errors.Store(err, errors.CodeStoreRead, "vector search")
	}
	defer rows.Close()

	var scored []scoredRecord
	for rows.Next() {
		var rec Record
		var blob []byte
		if err := rows.Scan(&rec.ID, &rec.Input, &rec.Response, &rec.Document, &rec.Type, &rec.Timestamp, &blob); err != nil {
			return nil, errors.Store(err, errors.CodeStoreRead, "vector search")
		}
		score := cosineSimilarity(query, decodeEmbedding(blob))
		if score > 0 {
			scored = append(scored, scoredRecord{rec, score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Store(err, errors.CodeStoreRead, "vector search")
	}

	return topRecords(scored, n), nil
}

func (c *ConversationStore) searchKeywords(ctx context.Context, query string, n int) ([]Record, error) {
	keywords := extractKeywords(query)
	if len(keywords) == 0 {
		return nil, nil
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, input, response, document, type, timestamp FROM conversations
	`)
	if err != nil {
		return nil, errors.Store(err, errors.CodeStoreRead, "keyword search")
	}
	defer rows.Close()

	now := c.now()
	var scored []scoredRecord
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Input, &rec.Response, &rec.Document, &rec.Type, &rec.Timestamp); err != nil {
			return nil, errors.Store(err, errors.CodeStoreRead, "keyword search")
		}
		ts, _ := rec.Time()
		if score := calculateRelevance(rec.Document, keywords, now.Sub(ts)); score > 0 {
			scored = append(scored, scoredRecord{rec, score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Store(err, errors.CodeStoreRead, "keyword search")
	}

	return topRecords(scored, n), nil
}
