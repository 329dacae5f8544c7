package quiz

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrNoQuestions = errors.New("quiz has no questions")
	ErrInvalid     = errors.New("invalid quiz")
)

// Validate checks the structural invariants the grading engine relies on.
// Errors wrap ErrInvalid (or ErrNoQuestions).
func Validate(q *Quiz) error {
	if q == nil {
		return fmt.Errorf("%w: nil quiz", ErrInvalid)
	}
	if q.Title == "" {
		return fmt.Errorf("%w: missing field title", ErrInvalid)
	}
	if q.PassingScore < 0 || q.PassingScore > 100 {
		return fmt.Errorf("%w: passingScore must be within 0..100", ErrInvalid)
	}
	if q.TimeLimit != nil && *q.TimeLimit < 0 {
		return fmt.Errorf("%w: timeLimit must not be negative", ErrInvalid)
	}
	if q.MaxAttempts < 0 {
		return fmt.Errorf("%w: maxAttempts must not be negative", ErrInvalid)
	}
	if len(q.Questions) == 0 {
		return ErrNoQuestions
	}

	ids := make(map[string]struct{}, len(q.Questions))
	for i, question := range q.Questions {
		if question.ID == "" {
			return fmt.Errorf("%w: missing id of %d question", ErrInvalid, i)
		}
		if _, dup := ids[question.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %q", ErrInvalid, question.ID)
		}
		ids[question.ID] = struct{}{}

		if question.Question == "" {
			return fmt.Errorf("%w: missing text of %d question", ErrInvalid, i)
		}
		if err := validateOptions(question); err != nil {
			return fmt.Errorf("%w: question %q: %v", ErrInvalid, question.ID, err)
		}
	}
	return nil
}

func validateOptions(q Question) error {
	if len(q.Options) < 2 {
		return errors.New("amount of options must be at least two")
	}
	opts := make(map[string]struct{}, len(q.Options))
	for _, o := range q.Options {
		if _, dup := opts[o]; dup {
			return fmt.Errorf("duplicate option %q", o)
		}
		opts[o] = struct{}{}
	}

	switch q.Type {
	case SingleSelect, TrueFalse:
		if q.CorrectAnswer.IsMulti() || q.CorrectAnswer.Len() != 1 {
			return errors.New("single-select needs exactly one correct answer")
		}
	case MultipleSelect:
		if !q.CorrectAnswer.IsMulti() || q.CorrectAnswer.Len() == 0 {
			return errors.New("multiple-select needs a non-empty set of correct answers")
		}
	default:
		return fmt.Errorf("unknown question type %q", q.Type)
	}

	for _, v := range q.CorrectAnswer.Values() {
		if _, ok := opts[v]; !ok {
			return fmt.Errorf("correct answer %q is not an option", v)
		}
	}
	return nil
}
