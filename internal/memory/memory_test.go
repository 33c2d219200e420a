package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "grind.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grind.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	var n int
	require.NoError(t, s2.DB().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestPreferenceStoreLastWriteWins(t *testing.T) {
	ctx := context.Background()
	prefs := NewPreferenceStore(openTestStore(t).DB())

	v, err := prefs.Get(ctx, KeyUserTitle)
	require.NoError(t, err)
	assert.Empty(t, v)

	title, err := prefs.GetOr(ctx, KeyUserTitle, "jefe")
	require.NoError(t, err)
	assert.Equal(t, "jefe", title)

	require.NoError(t, prefs.Set(ctx, KeyUserTitle, "Max"))
	require.NoError(t, prefs.Set(ctx, KeyUserTitle, "Tony"))

	v, err = prefs.Get(ctx, KeyUserTitle)
	require.NoError(t, err)
	assert.Equal(t, "Tony", v)
}

func TestReminderPopDueDeliversOnce(t *testing.T) {
	ctx := context.Background()
	reminders := NewReminderStore(openTestStore(t).DB())
	base := time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)

	_, err := reminders.Add(ctx, "comprar pan", base.Add(2*time.Hour))
	require.NoError(t, err)
	_, err = reminders.Add(ctx, "llamar a mamá", base.Add(time.Hour))
	require.NoError(t, err)
	_, err = reminders.Add(ctx, "pagar luz", base.Add(48*time.Hour))
	require.NoError(t, err)

	due, err := reminders.PopDue(ctx, base)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = reminders.PopDue(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "llamar a mamá", due[0].Content)
	assert.Equal(t, "comprar pan", due[1].Content)

	due, err = reminders.PopDue(ctx, base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)

	n, err := reminders.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReminderPopDueConcurrentCallersNeverShare(t *testing.T) {
	ctx := context.Background()
	reminders := NewReminderStore(openTestStore(t).DB())
	now := time.Now()

	for i := 0; i < 20; i++ {
		_, err := reminders.Add(ctx, fmt.Sprintf("r%d", i), now.Add(-time.Minute))
		require.NoError(t, err)
	}

	var mu sync.Mutex
	seen := map[string]int{}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			due, err := reminders.PopDue(ctx, now)
			assert.NoError(t, err)
			mu.Lock()
			for _, r := range due {
				seen[r.ID]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 20)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestReminderAddRejectsEmpty(t *testing.T) {
	reminders := NewReminderStore(openTestStore(t).DB())
	_, err := reminders.Add(context.Background(), "  ", time.Now())
	assert.Error(t, err)
}

// fakeEmbedder maps a handful of topics onto fixed axes.
type fakeEmbedder struct {
	fail bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.fail {
		return nil, fmt.Errorf("quota exceeded")
	}
	lower := strings.ToLower(text)
	vec := make([]float32, 3)
	if strings.Contains(lower, "python") || strings.Contains(lower, "código") {
		vec[0] = 1
	}
	if strings.Contains(lower, "receta") || strings.Contains(lower, "cocina") {
		vec[1] = 1
	}
	vec[2] = 0.1
	return vec, nil
}

func (f *fakeEmbedder) Model() string { return "fake-embed" }

func TestConversationAppendAndVectorSearch(t *testing.T) {
	ctx := context.Background()
	db := openTestStore(t).DB()
	clock := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	conv := NewConversationStore(db, zap.NewNop(),
		WithEmbedder(&fakeEmbedder{}),
		WithClock(func() time.Time { return clock }),
	)

	rec, err := conv.Append(ctx, "¿cómo ordeno una lista en python?", "usa sorted()")
	require.NoError(t, err)
	assert.Len(t, rec.ID, 26)
	assert.Equal(t, "¿cómo ordeno una lista en python? → usa sorted()", rec.Document)
	assert.Equal(t, DocumentType, rec.Type)
	ts, err := rec.Time()
	require.NoError(t, err)
	assert.True(t, ts.Equal(clock))

	_, err = conv.Append(ctx, "dame una receta de cocina", "tortilla de patatas")
	require.NoError(t, err)

	hits, err := conv.Search(ctx, "error en mi código python", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, rec.ID, hits[0].ID)

	got, err := conv.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	n, err := conv.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestConversationSearchFallsBackToKeywords(t *testing.T) {
	ctx := context.Background()
	db := openTestStore(t).DB()
	conv := NewConversationStore(db, zap.NewNop(), WithEmbedder(&fakeEmbedder{fail: true}))

	_, err := conv.Append(ctx, "háblame de los agujeros negros", "colapsos estelares")
	require.NoError(t, err)
	_, err = conv.Append(ctx, "qué tiempo hace", "soleado")
	require.NoError(t, err)

	hits, err := conv.Search(ctx, "más sobre agujeros negros", 2)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Document, "agujeros negros")

	hits, err = conv.Search(ctx, "a", 2)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestConversationIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	clock := time.Now()
	conv := NewConversationStore(openTestStore(t).DB(), nil, WithClock(func() time.Time { return clock }))

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		rec, err := conv.Append(ctx, "hola", "hola")
		require.NoError(t, err)
		assert.False(t, seen[rec.ID])
		seen[rec.ID] = true
	}
}

func TestEmbeddingBlobRoundTrip(t *testing.T) {
	vec := []float32{0.25, -1.5, 3}
	assert.Equal(t, vec, decodeEmbedding(encodeEmbedding(vec)))
	assert.InDelta(t, 1.0, cosineSimilarity(vec, vec), 1e-9)
	assert.Zero(t, cosineSimilarity(vec, []float32{1}))
}
