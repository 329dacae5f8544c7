package quiz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// RawQuestion is the upstream wire shape. Options and CorrectAnswer may arrive
// as a JSON array, a JSON string holding an encoded array, or a comma-separated string.
type RawQuestion struct {
	ID            string          `json:"id"`
	Question      string          `json:"question"`
	Type          string          `json:"type"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
	Explanation   string          `json:"explanation,omitempty"`
}

type RawQuiz struct {
	ID           string        `json:"id"`
	LessonID     string        `json:"lessonId,omitempty"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	PassingScore int           `json:"passingScore"`
	TimeLimit    *int          `json:"timeLimit,omitempty"`
	MaxAttempts  int           `json:"maxAttempts"`
	Questions    []RawQuestion `json:"questions"`
}

// Normalize converts an upstream quiz into the validated model.
func Normalize(raw RawQuiz) (*Quiz, error) {
	q := &Quiz{
		ID:           raw.ID,
		LessonID:     raw.LessonID,
		Title:        strings.TrimSpace(raw.Title),
		Description:  raw.Description,
		PassingScore: raw.PassingScore,
		TimeLimit:    raw.TimeLimit,
		MaxAttempts:  raw.MaxAttempts,
		Questions:    make([]Question, 0, len(raw.Questions)),
	}
	if q.TimeLimit != nil && *q.TimeLimit == 0 {
		q.TimeLimit = nil
	}

	for i, rq := range raw.Questions {
		typ := normalizeType(rq.Type)
		opts, err := parseStringList(rq.Options, true)
		if err != nil {
			return nil, fmt.Errorf("%w: options of %d question: %v", ErrInvalid, i, err)
		}
		// a single-select key is one option text and may itself contain commas
		correct, err := parseStringList(rq.CorrectAnswer, typ.IsMulti())
		if err != nil {
			return nil, fmt.Errorf("%w: correctAnswer of %d question: %v", ErrInvalid, i, err)
		}
		id := strings.TrimSpace(rq.ID)
		if id == "" {
			id = fmt.Sprintf("q%d", i+1)
		}

		var key Answer
		if typ.IsMulti() {
			key = MultiAnswer(correct...)
		} else if len(correct) == 1 {
			key = SingleAnswer(correct[0])
		} else {
			// leave it malformed for Validate to report
			key = MultiAnswer(correct...)
		}

		q.Questions = append(q.Questions, Question{
			ID:            id,
			Question:      strings.TrimSpace(rq.Question),
			Type:          typ,
			Options:       opts,
			CorrectAnswer: key,
			Explanation:   rq.Explanation,
		})
	}

	if err := Validate(q); err != nil {
		return nil, err
	}
	return q, nil
}

func normalizeType(t string) QuestionType {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "multiple-select", "multiple_select", "multi", "mcq_multi", "multiple-choice-multi":
		return MultipleSelect
	case "true-false", "true_false", "truefalse", "boolean":
		return TrueFalse
	case "single-select", "single_select", "single", "mcq_single", "multiple-choice", "":
		return SingleSelect
	default:
		return QuestionType(t)
	}
}

// parseStringList accepts ["a","b"], "[\"a\",\"b\"]", "a" and, when
// splitCommas is set, "a, b".
func parseStringList(raw json.RawMessage, splitCommas bool) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch raw[0] {
	case '[':
		var arr []string
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil, err
		}
		return trimAll(arr), nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "[") {
			var arr []string
			if err := json.Unmarshal([]byte(s), &arr); err != nil {
				return nil, fmt.Errorf("encoded array: %w", err)
			}
			return trimAll(arr), nil
		}
		if s == "" {
			return nil, nil
		}
		if !splitCommas {
			return []string{s}, nil
		}
		return trimAll(strings.Split(s, ",")), nil
	default:
		return nil, fmt.Errorf("unexpected json %s", string(raw))
	}
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
