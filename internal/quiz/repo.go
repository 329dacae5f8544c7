package quiz

import "context"

type ListOpts struct {
	LessonID string
	Limit    int
	Offset   int
}

type Store interface {
	PutQuiz(ctx context.Context, q Quiz) error
	GetQuiz(ctx context.Context, id string) (Quiz, error) // full quiz, answer keys included
	GetQuizByLesson(ctx context.Context, lessonID string) (Quiz, error)
	ListQuizzes(ctx context.Context, opts ListOpts) ([]Quiz, error)
	DeleteQuiz(ctx context.Context, id string) error

	SaveResult(ctx context.Context, r Result) error
	GetResult(ctx context.Context, id string) (Result, error)
	ListResults(ctx context.Context, f ResultFilter) ([]Result, error)
	// CountResults is the number of graded attempts a user has for a quiz.
	CountResults(ctx context.Context, quizID, userID string) (int, error)
}
