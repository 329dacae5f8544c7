package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/secacademy-lms/internal/quiz"
)

type memBackend struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	failGet error
	gets    int
}

func newMemBackend() *memBackend {
	return &memBackend{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (b *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gets++
	if b.failGet != nil {
		return nil, b.failGet
	}
	v, ok := b.data[key]
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (b *memBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
	b.ttls[key] = ttl
	return nil
}

func (b *memBackend) Del(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.data, k)
	}
	return nil
}

func (b *memBackend) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.data[key]
	return ok
}

// countingStore counts GetQuiz calls that reach the underlying store.
type countingStore struct {
	*quiz.MemoryStore
	mu   sync.Mutex
	hits int
}

func (s *countingStore) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	s.mu.Lock()
	s.hits++
	s.mu.Unlock()
	return s.MemoryStore.GetQuiz(ctx, id)
}

func phishingQuiz(title string) quiz.Quiz {
	return quiz.Quiz{
		ID: "phishing", Title: title, PassingScore: 80,
		Questions: []quiz.Question{
			{ID: "q1", Question: "Red flags", Type: quiz.MultipleSelect, Options: []string{"urgency", "typos", "your name"},
				CorrectAnswer: quiz.MultiAnswer("urgency", "typos")},
		},
	}
}

func TestQuizCacheReadThrough(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{MemoryStore: quiz.NewMemoryStore()}
	require.NoError(t, store.PutQuiz(ctx, phishingQuiz("Phishing")))
	backend := newMemBackend()
	c := NewQuizCache(store, backend, 5*time.Minute, nil)

	first, err := c.GetQuiz(ctx, "phishing")
	require.NoError(t, err)
	second, err := c.GetQuiz(ctx, "phishing")
	require.NoError(t, err)

	assert.Equal(t, 1, store.hits, "second read served from cache")
	assert.Equal(t, first.Title, second.Title)
	assert.True(t, second.Questions[0].CorrectAnswer.IsMulti())
	assert.Equal(t, []string{"urgency", "typos"}, second.Questions[0].CorrectAnswer.Values())
	assert.Equal(t, 5*time.Minute, backend.ttls["quiz:phishing"])
}

func TestQuizCacheInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{MemoryStore: quiz.NewMemoryStore()}
	backend := newMemBackend()
	c := NewQuizCache(store, backend, time.Minute, nil)

	require.NoError(t, c.PutQuiz(ctx, phishingQuiz("v1")))
	_, err := c.GetQuiz(ctx, "phishing")
	require.NoError(t, err)
	require.True(t, backend.has("quiz:phishing"))

	require.NoError(t, c.PutQuiz(ctx, phishingQuiz("v2")))
	assert.False(t, backend.has("quiz:phishing"))
	q, err := c.GetQuiz(ctx, "phishing")
	require.NoError(t, err)
	assert.Equal(t, "v2", q.Title)

	require.NoError(t, c.DeleteQuiz(ctx, "phishing"))
	assert.False(t, backend.has("quiz:phishing"))
	_, err = c.GetQuiz(ctx, "phishing")
	assert.ErrorIs(t, err, quiz.ErrNotFound)
}

func TestQuizCacheFallsBackOnBackendError(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{MemoryStore: quiz.NewMemoryStore()}
	require.NoError(t, store.PutQuiz(ctx, phishingQuiz("Phishing")))
	backend := newMemBackend()
	backend.failGet = errors.New("connection reset")
	c := NewQuizCache(store, backend, time.Minute, nil)

	q, err := c.GetQuiz(ctx, "phishing")
	require.NoError(t, err)
	assert.Equal(t, "Phishing", q.Title)
	assert.Equal(t, 1, store.hits)
}

func TestQuizCacheDropsCorruptEntry(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{MemoryStore: quiz.NewMemoryStore()}
	require.NoError(t, store.PutQuiz(ctx, phishingQuiz("Phishing")))
	backend := newMemBackend()
	backend.data["quiz:phishing"] = []byte("{not json")
	c := NewQuizCache(store, backend, time.Minute, nil)

	q, err := c.GetQuiz(ctx, "phishing")
	require.NoError(t, err)
	assert.Equal(t, "Phishing", q.Title)

	_, err = c.GetQuiz(ctx, "phishing")
	require.NoError(t, err)
	assert.Equal(t, 1, store.hits, "entry was refilled")
}
