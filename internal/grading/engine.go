package grading

import (
	"github.com/mind-engage/secacademy-lms/internal/quiz"
)

// Strategy decides whether a stored answer is correct for one question.
// Strategies are only called for answered questions.
type Strategy interface {
	Correct(q quiz.Question, answer quiz.Answer) bool
}

// Summary is the graded view of a whole attempt.
type Summary struct {
	Score          int
	TotalQuestions int
	CorrectAnswers int
	Passed         bool
	Breakdown      []quiz.Outcome
}

// Grader routes each question to the Strategy for its type.
type Grader struct {
	strategies map[quiz.QuestionType]Strategy
}

type Option func(*Grader)

// WithStrategy installs or replaces the strategy for a question type.
func WithStrategy(t quiz.QuestionType, s Strategy) Option {
	return func(g *Grader) { g.strategies[t] = s }
}

// NewGrader installs built-in strategies.
func NewGrader(opts ...Option) *Grader {
	g := &Grader{
		strategies: map[quiz.QuestionType]Strategy{
			quiz.SingleSelect:   singleSelectStrategy{},
			quiz.TrueFalse:      singleSelectStrategy{},
			quiz.MultipleSelect: multipleSelectStrategy{},
		},
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

var defaultGrader = NewGrader()

// Grade grades answers against q with the built-in strategies.
func Grade(q *quiz.Quiz, answers quiz.Answers) Summary {
	return defaultGrader.Grade(q, answers)
}

// Grade is a pure function of its inputs. A missing answer, an answer of the
// wrong shape, or a question type without a strategy counts as incorrect.
func (g *Grader) Grade(q *quiz.Quiz, answers quiz.Answers) Summary {
	sum := Summary{
		TotalQuestions: len(q.Questions),
		Breakdown:      make([]quiz.Outcome, 0, len(q.Questions)),
	}
	for _, question := range q.Questions {
		out := quiz.Outcome{
			QuestionID:    question.ID,
			CorrectAnswer: question.CorrectAnswer,
			Explanation:   question.Explanation,
		}
		if a, ok := answers.Lookup(question.ID); ok {
			out.Answered = true
			out.Submitted = a
			if s, ok := g.strategies[question.Type]; ok {
				out.Correct = s.Correct(question, a)
			}
		}
		if out.Correct {
			sum.CorrectAnswers++
		}
		sum.Breakdown = append(sum.Breakdown, out)
	}
	sum.Score = Score(sum.CorrectAnswers, sum.TotalQuestions)
	sum.Passed = Passed(sum.Score, q.PassingScore)
	return sum
}

// Score is correct/total as a percentage rounded half up. 0 when total is 0.
func Score(correct, total int) int {
	if total <= 0 {
		return 0
	}
	if correct < 0 {
		correct = 0
	}
	if correct > total {
		correct = total
	}
	return (200*correct + total) / (2 * total)
}

func Passed(score, passingScore int) bool { return score >= passingScore }

// --- Strategies ---

type singleSelectStrategy struct{}

// Exact, case-sensitive match against the key.
func (singleSelectStrategy) Correct(q quiz.Question, a quiz.Answer) bool {
	if a.IsMulti() || a.Len() != 1 {
		return false
	}
	return a.Value() == q.CorrectAnswer.Value() && q.CorrectAnswer.Len() == 1
}

type multipleSelectStrategy struct{}

// Set equality, order-independent, no partial credit.
func (multipleSelectStrategy) Correct(q quiz.Question, a quiz.Answer) bool {
	if !a.IsMulti() {
		return false
	}
	return setEqual(toSet(q.CorrectAnswer.Values()), toSet(a.Values()))
}

// helpers

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
