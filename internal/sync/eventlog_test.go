package syncx_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/learnhub-lms/internal/db/dbtest"
	syncx "github.com/learnhub/learnhub-lms/internal/sync"
)

func TestEmitAndSince(t *testing.T) {
	ctx := context.Background()
	repo := syncx.NewEventRepo(dbtest.Open(t), "")

	require.NoError(t, repo.Emit(ctx, syncx.TypeAnswerSubmitted, "attempt-1", map[string]any{"index": 0}))
	require.NoError(t, repo.Emit(ctx, syncx.TypeCourseProgressRecomputed, "course-1", map[string]any{"progress": 50}))

	events, err := repo.Since(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "local", events[0].SiteID)
	assert.Equal(t, syncx.TypeAnswerSubmitted, events[0].Type)
	assert.JSONEq(t, `{"index":0}`, events[0].DataJSON)

	rest, err := repo.Since(ctx, events[0].Seq, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "course-1", rest[0].Key)
}
