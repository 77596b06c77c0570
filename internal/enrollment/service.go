// Package enrollment tracks which lessons each student has completed in a
// course and the completion percentage derived from them.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/learnhub/learnhub-lms/internal/apperr"
	"github.com/learnhub/learnhub-lms/internal/catalog"
	"github.com/learnhub/learnhub-lms/internal/lock"
	syncx "github.com/learnhub/learnhub-lms/internal/sync"
)

// Courses is the part of the catalog enrollments depend on.
type Courses interface {
	GetCourse(ctx context.Context, id string) (catalog.Course, error)
	CountLessons(ctx context.Context, courseID string) (int, error)
	LessonInCourse(ctx context.Context, courseID, lessonID string) (bool, error)
	ListLessons(ctx context.Context, courseID string) ([]catalog.Lesson, error)
}

// Projector recomputes the course average after an enrollment write.
type Projector interface {
	RecomputeCourseProgress(ctx context.Context, courseID string) (float64, error)
}

type Service struct {
	store     Store
	courses   Courses
	projector Projector
	locker    lock.Locker
	events    syncx.Appender
	log       *log.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithEvents(e syncx.Appender) Option    { return func(s *Service) { s.events = e } }
func WithLogger(l *log.Logger) Option       { return func(s *Service) { s.log = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(store Store, courses Courses, projector Projector, locker lock.Locker, opts ...Option) *Service {
	s := &Service{
		store:     store,
		courses:   courses,
		projector: projector,
		locker:    locker,
		log:       log.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func lockKey(userID, courseID string) string { return "enrollment:" + userID + ":" + courseID }

// Enroll creates the zero-state enrollment of userID in courseID. Enrolling
// twice returns the existing enrollment unchanged.
func (s *Service) Enroll(ctx context.Context, userID, courseID string) (Enrollment, error) {
	if userID == "" {
		return Enrollment{}, fmt.Errorf("%w: user is required", apperr.ErrValidation)
	}
	if _, err := s.courses.GetCourse(ctx, courseID); err != nil {
		return Enrollment{}, err
	}
	now := s.now().Unix()
	e, err := s.store.Create(ctx, Enrollment{
		ID:               uuid.NewString(),
		UserID:           userID,
		CourseID:         courseID,
		CompletedLessons: []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return Enrollment{}, err
	}
	if _, err := s.projector.RecomputeCourseProgress(ctx, courseID); err != nil {
		return Enrollment{}, fmt.Errorf("recompute course progress: %w", err)
	}
	return e, nil
}

// ToggleLessonCompletion marks lessonID completed or not for the student and
// recomputes the student's percentage and then the course average. Repeating
// a toggle with the same value changes nothing.
func (s *Service) ToggleLessonCompletion(ctx context.Context, userID, courseID, lessonID string, completed bool) (ToggleResult, error) {
	e, err := s.toggle(ctx, userID, courseID, lessonID, completed)
	if err != nil {
		return ToggleResult{}, err
	}
	// Runs after the enrollment commit and outside its lock; a concurrent
	// writer recomputes again after its own commit.
	courseProgress, err := s.projector.RecomputeCourseProgress(ctx, courseID)
	if err != nil {
		return ToggleResult{}, fmt.Errorf("recompute course progress: %w", err)
	}
	return ToggleResult{
		StudentProgress:  e.StudentProgress,
		CompletedLessons: e.CompletedLessons,
		CourseProgress:   courseProgress,
	}, nil
}

func (s *Service) toggle(ctx context.Context, userID, courseID, lessonID string, completed bool) (Enrollment, error) {
	unlock, err := s.locker.Lock(ctx, lockKey(userID, courseID))
	if err != nil {
		return Enrollment{}, fmt.Errorf("lock enrollment: %w", err)
	}
	defer unlock()

	e, err := s.store.Get(ctx, userID, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	ok, err := s.courses.LessonInCourse(ctx, courseID, lessonID)
	if err != nil {
		return Enrollment{}, err
	}
	if !ok {
		return Enrollment{}, fmt.Errorf("%w: lesson %s in course %s", apperr.ErrNotFound, lessonID, courseID)
	}
	total, err := s.courses.CountLessons(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}

	e.CompletedLessons = withLesson(e.CompletedLessons, lessonID, completed)
	e.StudentProgress = StudentProgress(len(e.CompletedLessons), total)
	e.UpdatedAt = s.now().Unix()
	if err := s.store.Save(ctx, e); err != nil {
		return Enrollment{}, err
	}

	if s.events != nil {
		payload := map[string]any{
			"userId":          userID,
			"courseId":        courseID,
			"lessonId":        lessonID,
			"completed":       completed,
			"studentProgress": e.StudentProgress,
		}
		if err := s.events.Emit(ctx, syncx.TypeLessonCompletionToggled, e.ID, payload); err != nil {
			s.log.Printf("event log: enrollment %s: %v", e.ID, err)
		}
	}
	return e, nil
}

// SyncCourse brings every enrollment of courseID in line with the course's
// current lessons after one was added or deleted: completions of removed
// lessons are dropped and each student percentage is recomputed against the
// new total. The course average is projected last and returned.
func (s *Service) SyncCourse(ctx context.Context, courseID string) (float64, error) {
	list, err := s.store.ListByCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	if len(list) == 0 {
		return 0, nil // no enrollments, so the average stays 0
	}
	for _, e := range list {
		if err := s.syncOne(ctx, e.UserID, courseID); err != nil {
			return 0, err
		}
	}
	courseProgress, err := s.projector.RecomputeCourseProgress(ctx, courseID)
	if err != nil {
		return 0, fmt.Errorf("recompute course progress: %w", err)
	}
	return courseProgress, nil
}

func (s *Service) syncOne(ctx context.Context, userID, courseID string) error {
	unlock, err := s.locker.Lock(ctx, lockKey(userID, courseID))
	if err != nil {
		return fmt.Errorf("lock enrollment: %w", err)
	}
	defer unlock()

	e, err := s.store.Get(ctx, userID, courseID)
	if err != nil {
		return err
	}
	// read under the lock so a toggle of a lesson created meanwhile is kept
	lessons, err := s.courses.ListLessons(ctx, courseID)
	if err != nil {
		return err
	}
	ids := make(map[string]bool, len(lessons))
	for _, l := range lessons {
		ids[l.ID] = true
	}

	completed := keepLessons(e.CompletedLessons, ids)
	progress := StudentProgress(len(completed), len(lessons))
	if len(completed) == len(e.CompletedLessons) && progress == e.StudentProgress {
		return nil
	}
	e.CompletedLessons = completed
	e.StudentProgress = progress
	e.UpdatedAt = s.now().Unix()
	return s.store.Save(ctx, e)
}

// Status returns the student's completed lessons and percentage, or zero
// values when the student has not enrolled.
func (s *Service) Status(ctx context.Context, userID, courseID string) (Status, error) {
	e, err := s.store.Get(ctx, userID, courseID)
	if errors.Is(err, apperr.ErrNotFound) {
		return Status{CompletedLessons: []string{}}, nil
	}
	if err != nil {
		return Status{}, err
	}
	return Status{CompletedLessons: e.CompletedLessons, StudentProgress: e.StudentProgress}, nil
}

// ListAll returns every enrollment, newest first.
func (s *Service) ListAll(ctx context.Context) ([]Listing, error) {
	return s.store.ListAll(ctx)
}
