package quiz

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryStore struct {
	mu      sync.RWMutex
	quizzes map[string]Quiz
	results map[string]Result
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		quizzes: map[string]Quiz{},
		results: map[string]Result{},
	}
}

func (s *MemoryStore) PutQuiz(_ context.Context, q Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.quizzes[q.ID]; ok && q.CreatedAt == 0 {
		q.CreatedAt = prev.CreatedAt
	}
	if q.CreatedAt == 0 {
		q.CreatedAt = time.Now().Unix()
	}
	q.Attempts = 0
	q.Questions = append([]Question(nil), q.Questions...)
	s.quizzes[q.ID] = q
	return nil
}

func (s *MemoryStore) GetQuiz(_ context.Context, id string) (Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quizzes[id]
	if !ok {
		return Quiz{}, ErrNotFound
	}
	return q, nil
}

func (s *MemoryStore) GetQuizByLesson(_ context.Context, lessonID string) (Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		found Quiz
		ok    bool
	)
	for _, q := range s.quizzes {
		if q.LessonID != lessonID {
			continue
		}
		// oldest quiz of the lesson wins, same as the SQL store
		if !ok || q.CreatedAt < found.CreatedAt || (q.CreatedAt == found.CreatedAt && q.ID < found.ID) {
			found, ok = q, true
		}
	}
	if !ok {
		return Quiz{}, ErrNotFound
	}
	return found, nil
}

func (s *MemoryStore) ListQuizzes(_ context.Context, opts ListOpts) ([]Quiz, error) {
	s.mu.RLock()
	out := make([]Quiz, 0, len(s.quizzes))
	for _, q := range s.quizzes {
		if opts.LessonID != "" && q.LessonID != opts.LessonID {
			continue
		}
		out = append(out, q)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return page(out, opts.Limit, opts.Offset), nil
}

func (s *MemoryStore) DeleteQuiz(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[id]; !ok {
		return ErrNotFound
	}
	delete(s.quizzes, id)
	for rid, r := range s.results {
		if r.QuizID == id {
			delete(s.results, rid)
		}
	}
	return nil
}

func (s *MemoryStore) SaveResult(_ context.Context, r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[r.QuizID]; !ok {
		return ErrNotFound
	}
	r.Answers = r.Answers.Clone()
	s.results[r.ID] = r
	return nil
}

func (s *MemoryStore) GetResult(_ context.Context, id string) (Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	if !ok {
		return Result{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) ListResults(_ context.Context, f ResultFilter) ([]Result, error) {
	s.mu.RLock()
	out := make([]Result, 0)
	for _, r := range s.results {
		if f.QuizID != "" && r.QuizID != f.QuizID {
			continue
		}
		if f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.After(out[j].CompletedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, f.Limit, f.Offset), nil
}

func (s *MemoryStore) CountResults(_ context.Context, quizID, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.results {
		if r.QuizID == quizID && r.UserID == userID {
			n++
		}
	}
	return n, nil
}

func page[T any](in []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(in) {
		return []T{}
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
