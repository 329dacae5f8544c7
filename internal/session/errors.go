package session

import "errors"

var (
	ErrUnavailable      = errors.New("quiz unavailable")
	ErrNoAttemptsLeft   = errors.New("no attempts left")
	ErrNotInProgress    = errors.New("attempt not in progress")
	ErrAlreadyStarted   = errors.New("attempt already started")
	ErrNotGraded        = errors.New("attempt not graded")
	ErrUnknownQuestion  = errors.New("unknown question")
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	ErrNotFound         = errors.New("session not found")
)
