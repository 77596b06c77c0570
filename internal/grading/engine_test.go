package grading

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/learnhub-lms/internal/apperr"
)

func mustKey(t *testing.T, kind Kind, raw string) Key {
	t.Helper()
	k, err := ParseKey(kind, json.RawMessage(raw))
	require.NoError(t, err)
	return k
}

func TestGradeScalarKinds(t *testing.T) {
	g := NewDefaultGrader()
	ctx := context.Background()

	cases := []struct {
		name    string
		kind    Kind
		key     string
		answer  string
		correct bool
	}{
		{"single choice match", KindSingleChoice, `"Paris"`, `"Paris"`, true},
		{"single choice miss", KindSingleChoice, `"Paris"`, `"paris"`, false},
		{"true false match", KindTrueFalse, `true`, `true`, true},
		{"true false miss", KindTrueFalse, `false`, `true`, false},
		{"fill blank", KindFillBlank, `"goroutine"`, `"goroutine"`, true},
		{"code completion", KindCodeCompletion, `"defer wg.Done()"`, `"wg.Done()"`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := Q{Points: 2, Key: mustKey(t, tc.kind, tc.key)}
			res, err := g.Grade(ctx, q, json.RawMessage(tc.answer))
			require.NoError(t, err)
			assert.Equal(t, tc.correct, res.Correct)
			if tc.correct {
				assert.Equal(t, 2.0, res.Points)
			} else {
				assert.Zero(t, res.Points)
			}
		})
	}
}

func TestGradeMultiSelectIsOrderIndependent(t *testing.T) {
	g := NewDefaultGrader()
	q := Q{Points: 3, Key: mustKey(t, KindMultiSelect, `["b","a","c"]`)}

	res, err := g.Grade(context.Background(), q, json.RawMessage(`["c","a","b"]`))
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Equal(t, 3.0, res.Points)

	res, err = g.Grade(context.Background(), q, json.RawMessage(`["a","b"]`))
	require.NoError(t, err)
	assert.False(t, res.Correct)
}

// Duplicate counts matter by default: {A,A,B} and {A,B,B} differ, whatever
// order either side arrives in.
func TestGradeMultiSelectDuplicates(t *testing.T) {
	ctx := context.Background()
	q := Q{Points: 1, Key: mustKey(t, KindMultiSelect, `["A","A","B"]`)}

	res, err := NewDefaultGrader().Grade(ctx, q, json.RawMessage(`["A","B","B"]`))
	require.NoError(t, err)
	assert.False(t, res.Correct)

	res, err = NewDefaultGrader().Grade(ctx, q, json.RawMessage(`["B","A","A"]`))
	require.NoError(t, err)
	assert.True(t, res.Correct)

	res, err = NewDefaultGrader(WithDedupeMulti(true)).Grade(ctx, q, json.RawMessage(`["A","B","B"]`))
	require.NoError(t, err)
	assert.True(t, res.Correct)
}

func TestGradeRejectsWrongShape(t *testing.T) {
	g := NewDefaultGrader()
	ctx := context.Background()

	_, err := g.Grade(ctx, Q{Points: 1, Key: mustKey(t, KindTrueFalse, `true`)}, json.RawMessage(`"yes"`))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = g.Grade(ctx, Q{Points: 1, Key: mustKey(t, KindMultiSelect, `["a"]`)}, json.RawMessage(`"a"`))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = g.Grade(ctx, Q{Points: 1, Key: mustKey(t, KindFillBlank, `"x"`)}, json.RawMessage(`null`))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestParseKey(t *testing.T) {
	_, err := ParseKey("essay", json.RawMessage(`"x"`))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = ParseKey(KindMultiSelect, json.RawMessage(`[]`))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	k := mustKey(t, KindMultiSelect, `["x","y"]`)
	b, err := json.Marshal(k)
	require.NoError(t, err)
	assert.JSONEq(t, `["x","y"]`, string(b))

	k = mustKey(t, KindTrueFalse, `false`)
	assert.Equal(t, false, k.Value())
}
