package quiz

import "time"

type QuestionType string

const (
	SingleSelect   QuestionType = "single-select"
	MultipleSelect QuestionType = "multiple-select"
	TrueFalse      QuestionType = "true-false" // graded as single-select
)

// IsMulti reports whether answers to this type are sets.
func (t QuestionType) IsMulti() bool { return t == MultipleSelect }

type Question struct {
	ID            string       `json:"id"`
	Question      string       `json:"question"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options"`
	CorrectAnswer Answer       `json:"correctAnswer"`
	Explanation   string       `json:"explanation,omitempty"`
}

type Quiz struct {
	ID           string     `json:"id"`
	LessonID     string     `json:"lessonId,omitempty"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	PassingScore int        `json:"passingScore"`
	TimeLimit    *int       `json:"timeLimit,omitempty"` // minutes; nil means untimed
	MaxAttempts  int        `json:"maxAttempts"`         // <= 0 means unlimited
	Attempts     int        `json:"attempts"`            // graded attempts of the viewer
	Questions    []Question `json:"questions"`

	CreatedAt int64 `json:"createdAt,omitempty"`
}

// TimeLimitSeconds returns the countdown length, 0 for untimed quizzes.
func (q *Quiz) TimeLimitSeconds() int {
	if q.TimeLimit == nil || *q.TimeLimit <= 0 {
		return 0
	}
	return *q.TimeLimit * 60
}

// AttemptsRemaining returns -1 when attempts are unlimited.
func (q *Quiz) AttemptsRemaining() int {
	if q.MaxAttempts <= 0 {
		return -1
	}
	if left := q.MaxAttempts - q.Attempts; left > 0 {
		return left
	}
	return 0
}

// CanAttempt reports whether another attempt may be started.
func (q *Quiz) CanAttempt() bool {
	return q.MaxAttempts <= 0 || q.Attempts < q.MaxAttempts
}

// Question looks up a question by id.
func (q *Quiz) Question(id string) (Question, bool) {
	for _, qq := range q.Questions {
		if qq.ID == id {
			return qq, true
		}
	}
	return Question{}, false
}

// WithoutKeys returns a copy safe to serve to students.
func (q *Quiz) WithoutKeys() *Quiz {
	cp := *q
	cp.Questions = make([]Question, len(q.Questions))
	for i, qq := range q.Questions {
		qq.CorrectAnswer = Answer{}
		qq.Explanation = ""
		cp.Questions[i] = qq
	}
	return &cp
}

// Outcome is the graded view of one question.
type Outcome struct {
	QuestionID    string `json:"questionId"`
	Answered      bool   `json:"answered"`
	Correct       bool   `json:"correct"`
	Submitted     Answer `json:"submitted,omitzero"`
	CorrectAnswer Answer `json:"correctAnswer"`
	Explanation   string `json:"explanation,omitempty"`
}

type Result struct {
	ID             string    `json:"id"`
	QuizID         string    `json:"quizId"`
	UserID         string    `json:"userId"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	CorrectAnswers int       `json:"correctAnswers"`
	Passed         bool      `json:"passed"`
	Answers        Answers   `json:"answers"`
	Breakdown      []Outcome `json:"breakdown,omitempty"`
	CompletedAt    time.Time `json:"completedAt"`
	TimeTaken      int       `json:"timeTaken"` // seconds, 0 if untimed
	AutoSubmitted  bool      `json:"autoSubmitted"`
}

type ResultFilter struct {
	QuizID string
	UserID string
	Limit  int
	Offset int
}
