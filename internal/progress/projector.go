// Package progress derives course-level aggregates from enrollments.
package progress

import (
	"context"
	"log"
	"math"

	"github.com/learnhub/learnhub-lms/internal/lock"
	syncx "github.com/learnhub/learnhub-lms/internal/sync"
)

// Store reads enrollment percentages and writes the projected course value.
type Store interface {
	StudentProgress(ctx context.Context, courseID string) ([]float64, error)
	SetCourseProgress(ctx context.Context, courseID string, progress float64) error
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Average is the course progress for a set of enrollment percentages:
// their mean rounded to two decimals, 0 for an empty set.
func Average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return Round2(sum / float64(len(values)))
}

// Projector recomputes courses.progress. Callers run it after each
// enrollment write has committed; it never runs on reads. Runs for the same
// course hold a per-course lock across read and write, so the last run to
// finish has seen every committed enrollment.
type Projector struct {
	store  Store
	locker lock.Locker
	events syncx.Appender
	log    *log.Logger
}

// NewProjector builds a Projector. locker and events may be nil.
func NewProjector(store Store, locker lock.Locker, events syncx.Appender, logger *log.Logger) *Projector {
	if logger == nil {
		logger = log.Default()
	}
	return &Projector{store: store, locker: locker, events: events, log: logger}
}

func (p *Projector) RecomputeCourseProgress(ctx context.Context, courseID string) (float64, error) {
	if p.locker != nil {
		unlock, err := p.locker.Lock(ctx, "course-progress:"+courseID)
		if err != nil {
			return 0, err
		}
		defer unlock()
	}
	values, err := p.store.StudentProgress(ctx, courseID)
	if err != nil {
		return 0, err
	}
	avg := Average(values)
	if err := p.store.SetCourseProgress(ctx, courseID, avg); err != nil {
		return 0, err
	}
	if p.events != nil {
		payload := map[string]any{"progress": avg, "enrollments": len(values)}
		if err := p.events.Emit(ctx, syncx.TypeCourseProgressRecomputed, courseID, payload); err != nil {
			p.log.Printf("event log: course %s: %v", courseID, err)
		}
	}
	return avg, nil
}

// Percentage is 100*score/max rounded to two decimals, 0 when max is 0.
func Percentage(score, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return Round2(100 * score / max)
}
