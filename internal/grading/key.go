package grading

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/learnhub/learnhub-lms/internal/apperr"
)

// Kind is a question type. The values are the wire names used by the
// frontend and stored in quizzes.questions_json.
type Kind string

const (
	KindSingleChoice   Kind = "multiple-choice"
	KindTrueFalse      Kind = "true-false"
	KindFillBlank      Kind = "fill-in-the-blank"
	KindMultiSelect    Kind = "multiple-answer"
	KindCodeCompletion Kind = "complete-the-code"
)

func (k Kind) Valid() bool {
	switch k {
	case KindSingleChoice, KindTrueFalse, KindFillBlank, KindMultiSelect, KindCodeCompletion:
		return true
	}
	return false
}

// HasOptions reports whether questions of this kind carry an options list.
func (k Kind) HasOptions() bool {
	return k == KindSingleChoice || k == KindMultiSelect
}

// Key is the correct answer of one question. Kind selects which field is
// meaningful: Bool for true-false, Set for multiple-answer, Text otherwise.
type Key struct {
	Kind Kind
	Text string
	Bool bool
	Set  []string
}

// ParseKey decodes a correct answer for kind, rejecting values of the wrong shape.
func ParseKey(kind Kind, raw json.RawMessage) (Key, error) {
	if !kind.Valid() {
		return Key{}, fmt.Errorf("%w: unknown question type %q", apperr.ErrValidation, kind)
	}
	if isNull(raw) {
		return Key{}, fmt.Errorf("%w: correct answer is required", apperr.ErrValidation)
	}
	k := Key{Kind: kind}
	var err error
	switch kind {
	case KindTrueFalse:
		err = json.Unmarshal(raw, &k.Bool)
	case KindMultiSelect:
		err = json.Unmarshal(raw, &k.Set)
		if err == nil && len(k.Set) == 0 {
			err = fmt.Errorf("empty answer set")
		}
	default:
		err = json.Unmarshal(raw, &k.Text)
	}
	if err != nil {
		return Key{}, fmt.Errorf("%w: correct answer for %s: %v", apperr.ErrValidation, kind, err)
	}
	return k, nil
}

// Value returns the canonical correct answer as it is shown to clients.
func (k Key) Value() any {
	switch k.Kind {
	case KindTrueFalse:
		return k.Bool
	case KindMultiSelect:
		out := make([]string, len(k.Set))
		copy(out, k.Set)
		return out
	default:
		return k.Text
	}
}

func (k Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Value())
}

func isNull(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}
