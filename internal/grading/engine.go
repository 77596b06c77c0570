package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/learnhub/learnhub-lms/internal/apperr"
)

// Q is the view of a question needed for grading.
type Q struct {
	Points float64
	Key    Key
}

// Result is the outcome of grading one submitted answer.
type Result struct {
	Correct   bool
	Points    float64 // awarded
	MaxPoints float64
}

// Strategy grades a single answer against a key of one Kind.
type Strategy interface {
	Grade(ctx context.Context, q Q, response json.RawMessage) (Result, error)
}

// Grader routes by question kind to the matching Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, response json.RawMessage) (Result, error)
}

type defaultGrader struct {
	strategies map[Kind]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, response json.RawMessage) (Result, error) {
	if isNull(response) {
		return Result{MaxPoints: q.Points}, fmt.Errorf("%w: answer is required", apperr.ErrValidation)
	}
	s, ok := g.strategies[q.Key.Kind]
	if !ok {
		return Result{MaxPoints: q.Points}, fmt.Errorf("%w: no strategy for %q", apperr.ErrValidation, q.Key.Kind)
	}
	return s.Grade(ctx, q, response)
}

type Option func(*config)

type config struct {
	DedupeMulti bool // compare multiple-answer keys as sets instead of multisets
}

func WithDedupeMulti(b bool) Option { return func(c *config) { c.DedupeMulti = b } }

// NewDefaultGrader installs the built-in strategies.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[Kind]Strategy{
			KindSingleChoice:   textStrategy{},
			KindFillBlank:      textStrategy{},
			KindCodeCompletion: textStrategy{},
			KindTrueFalse:      boolStrategy{},
			KindMultiSelect:    multiStrategy{dedupe: cfg.DedupeMulti},
		},
	}
}

func award(q Q, correct bool) Result {
	res := Result{Correct: correct, MaxPoints: q.Points}
	if correct {
		res.Points = q.Points
	}
	return res
}

func shapeErr(k Kind, want string) error {
	return fmt.Errorf("%w: %s answer must be %s", apperr.ErrValidation, k, want)
}

// --- Strategies ---

type textStrategy struct{}

func (textStrategy) Grade(_ context.Context, q Q, response json.RawMessage) (Result, error) {
	var s string
	if err := json.Unmarshal(response, &s); err != nil {
		return Result{MaxPoints: q.Points}, shapeErr(q.Key.Kind, "a string")
	}
	return award(q, s == q.Key.Text), nil
}

type boolStrategy struct{}

func (boolStrategy) Grade(_ context.Context, q Q, response json.RawMessage) (Result, error) {
	var b bool
	if err := json.Unmarshal(response, &b); err != nil {
		return Result{MaxPoints: q.Points}, shapeErr(q.Key.Kind, "a boolean")
	}
	return award(q, b == q.Key.Bool), nil
}

type multiStrategy struct{ dedupe bool }

func (s multiStrategy) Grade(_ context.Context, q Q, response json.RawMessage) (Result, error) {
	var resp []string
	if err := json.Unmarshal(response, &resp); err != nil {
		return Result{MaxPoints: q.Points}, shapeErr(q.Key.Kind, "a list of strings")
	}
	want := q.Key.Set
	if s.dedupe {
		resp, want = unique(resp), unique(want)
	}
	return award(q, equalSorted(resp, want)), nil
}

// helpers

// equalSorted compares a and b as multisets: same length and the same
// elements after sorting, so duplicate counts must match.
func equalSorted(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func unique(arr []string) []string {
	seen := make(map[string]struct{}, len(arr))
	out := make([]string, 0, len(arr))
	for _, s := range arr {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
