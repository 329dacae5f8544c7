package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/mind-engage/secacademy-lms/internal/quiz"
)

const quizKeyPrefix = "quiz:"

func quizKey(id string) string { return quizKeyPrefix + id }

// QuizCache is a read-through cache of quiz definitions in front of a
// quiz.Store. Cache failures are logged and fall through to the store.
type QuizCache struct {
	quiz.Store
	backend Backend
	ttl     time.Duration
	log     *slog.Logger
}

func NewQuizCache(store quiz.Store, backend Backend, ttl time.Duration, log *slog.Logger) *QuizCache {
	if log == nil {
		log = slog.Default()
	}
	return &QuizCache{Store: store, backend: backend, ttl: ttl, log: log}
}

func (c *QuizCache) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	data, err := c.backend.Get(ctx, quizKey(id))
	switch {
	case err == nil:
		var q quiz.Quiz
		jerr := json.Unmarshal(data, &q)
		if jerr == nil {
			return q, nil
		}
		c.log.Warn("dropping undecodable cache entry", "quiz", id, "err", jerr)
	case !errors.Is(err, ErrMiss):
		c.log.Warn("quiz cache read failed", "quiz", id, "err", err)
	}

	q, err := c.Store.GetQuiz(ctx, id)
	if err != nil {
		return quiz.Quiz{}, err
	}
	if data, err := json.Marshal(q); err == nil {
		if err := c.backend.Set(ctx, quizKey(id), data, c.ttl); err != nil {
			c.log.Warn("quiz cache fill failed", "quiz", id, "err", err)
		}
	}
	return q, nil
}

func (c *QuizCache) PutQuiz(ctx context.Context, q quiz.Quiz) error {
	if err := c.Store.PutQuiz(ctx, q); err != nil {
		return err
	}
	c.invalidate(ctx, q.ID)
	return nil
}

func (c *QuizCache) DeleteQuiz(ctx context.Context, id string) error {
	if err := c.Store.DeleteQuiz(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *QuizCache) invalidate(ctx context.Context, id string) {
	if err := c.backend.Del(ctx, quizKey(id)); err != nil {
		c.log.Warn("quiz cache invalidate failed", "quiz", id, "err", err)
	}
}
