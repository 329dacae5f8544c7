package quiz

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Answer is either a single option string or a set of option strings.
// The zero value is "no answer".
type Answer struct {
	values []string
	multi  bool
}

func SingleAnswer(v string) Answer {
	return Answer{values: []string{v}}
}

// MultiAnswer builds a set answer. Duplicates are dropped, first occurrence wins.
func MultiAnswer(vs ...string) Answer {
	out := make([]string, 0, len(vs))
	seen := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return Answer{values: out, multi: true}
}

func (a Answer) IsZero() bool  { return !a.multi && len(a.values) == 0 }
func (a Answer) IsMulti() bool { return a.multi }
func (a Answer) Len() int      { return len(a.values) }

// Value returns the single value, or "" for set answers.
func (a Answer) Value() string {
	if a.multi || len(a.values) == 0 {
		return ""
	}
	return a.values[0]
}

// Values returns a copy of the stored values in insertion order.
func (a Answer) Values() []string {
	out := make([]string, len(a.values))
	copy(out, a.values)
	return out
}

func (a Answer) Contains(v string) bool {
	for _, x := range a.values {
		if x == v {
			return true
		}
	}
	return false
}

// Toggle removes v from the set if present, otherwise appends it.
// A single or empty answer is treated as the set of its values.
func (a Answer) Toggle(v string) Answer {
	out := make([]string, 0, len(a.values)+1)
	found := false
	for _, x := range a.values {
		if x == v {
			found = true
			continue
		}
		out = append(out, x)
	}
	if !found {
		out = append(out, v)
	}
	return Answer{values: out, multi: true}
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.multi {
		if a.values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.values)
	}
	if len(a.values) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(a.values[0])
}

func (a *Answer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*a = Answer{}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = SingleAnswer(s)
		return nil
	case b[0] == '[':
		var arr []string
		if err := json.Unmarshal(b, &arr); err != nil {
			return err
		}
		*a = MultiAnswer(arr...)
		return nil
	default:
		return errors.New("answer must be a string or an array of strings")
	}
}

// Answers maps question id to the stored answer.
type Answers map[string]Answer

// Lookup reports the stored answer and whether one exists.
func (as Answers) Lookup(questionID string) (Answer, bool) {
	if as == nil {
		return Answer{}, false
	}
	a, ok := as[questionID]
	if !ok || a.Len() == 0 {
		return Answer{}, false
	}
	return a, true
}

func (as Answers) Clone() Answers {
	out := make(Answers, len(as))
	for k, v := range as {
		out[k] = Answer{values: v.Values(), multi: v.multi}
	}
	return out
}
