package attempt

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/learnhub/learnhub-lms/internal/apperr"
)

// Store persists attempts. Insert and Update are conditional writes: they
// fail with apperr.ErrInvalidSequence when another writer got there first,
// which keeps answers strictly sequential across processes.
type Store interface {
	Get(ctx context.Context, userID, quizID string) (Attempt, error)
	// Insert stores a brand-new attempt (holding its first answer).
	Insert(ctx context.Context, a Attempt) error
	// Update replaces a, provided the stored row still has prevAnswered answers.
	Update(ctx context.Context, a Attempt, prevAnswered int) error
	DeleteByQuiz(ctx context.Context, quizID string) (int64, error)
	List(ctx context.Context, opts ListOpts) ([]Attempt, error)
}

type memoryStore struct {
	mu       sync.RWMutex
	attempts map[string]Attempt // key: user|quiz
}

func NewMemoryStore() Store {
	return &memoryStore{attempts: map[string]Attempt{}}
}

func memKey(userID, quizID string) string { return userID + "|" + quizID }

func (m *memoryStore) Get(_ context.Context, userID, quizID string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[memKey(userID, quizID)]
	if !ok {
		return Attempt{}, fmt.Errorf("%w: attempt", apperr.ErrNotFound)
	}
	return a, nil
}

func (m *memoryStore) Insert(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey(a.UserID, a.QuizID)
	if _, ok := m.attempts[k]; ok {
		return fmt.Errorf("%w: attempt already started", apperr.ErrInvalidSequence)
	}
	m.attempts[k] = a
	return nil
}

func (m *memoryStore) Update(_ context.Context, a Attempt, prevAnswered int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey(a.UserID, a.QuizID)
	cur, ok := m.attempts[k]
	if !ok || cur.QuestionsAnswered != prevAnswered {
		return fmt.Errorf("%w: attempt moved on", apperr.ErrInvalidSequence)
	}
	m.attempts[k] = a
	return nil
}

func (m *memoryStore) DeleteByQuiz(_ context.Context, quizID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, a := range m.attempts {
		if a.QuizID == quizID {
			delete(m.attempts, k)
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) List(_ context.Context, opts ListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Attempt{}
	for _, a := range m.attempts {
		if opts.QuizID != "" && a.QuizID != opts.QuizID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.Completed != nil && a.Completed != *opts.Completed {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt != out[j].StartedAt {
			return out[i].StartedAt > out[j].StartedAt
		}
		return out[i].ID < out[j].ID
	})
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []Attempt{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}
