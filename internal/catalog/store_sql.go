package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/learnhub/learnhub-lms/internal/apperr"
)

// Store is the course/lesson/quiz catalog. The quiz and enrollment cores
// only read from it; writes come from the admin handlers.
type Store interface {
	GetQuiz(ctx context.Context, id string) (Quiz, error)
	// PutQuiz normalizes and upserts q. existed reports whether a quiz with
	// the same id was replaced; replacing clears the quiz's attempts and
	// bumps its revision in the same transaction.
	PutQuiz(ctx context.Context, q Quiz) (saved Quiz, existed bool, err error)
	ListQuizzes(ctx context.Context, courseID string) ([]QuizSummary, error)

	GetCourse(ctx context.Context, id string) (Course, error)
	ListCourses(ctx context.Context) ([]Course, error)
	PutCourse(ctx context.Context, c Course) (Course, error)
	PutLesson(ctx context.Context, l Lesson) (Lesson, error)
	GetLesson(ctx context.Context, courseID, lessonID string) (Lesson, error)
	UpdateLesson(ctx context.Context, l Lesson) (Lesson, error)
	DeleteLesson(ctx context.Context, courseID, lessonID string) error
	ListLessons(ctx context.Context, courseID string) ([]Lesson, error)
	CountLessons(ctx context.Context, courseID string) (int, error)
	LessonInCourse(ctx context.Context, courseID, lessonID string) (bool, error)
}

type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,course_id,lesson_id,title,description,questions_json,max_score,revision,created_at,updated_at
		FROM quizzes WHERE id=$1`, id)
	var q Quiz
	var qjson string
	if err := row.Scan(&q.ID, &q.CourseID, &q.LessonID, &q.Title, &q.Description, &qjson, &q.MaxScore, &q.Revision, &q.CreatedAt, &q.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, fmt.Errorf("%w: quiz %s", apperr.ErrNotFound, id)
		}
		return Quiz{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &q.Questions); err != nil {
		return Quiz{}, fmt.Errorf("decode quiz %s: %w", id, err)
	}
	return q, nil
}

func (s *SQLStore) PutQuiz(ctx context.Context, q Quiz) (Quiz, bool, error) {
	if err := q.Normalize(); err != nil {
		return Quiz{}, false, err
	}
	if _, err := s.GetCourse(ctx, q.CourseID); err != nil {
		return Quiz{}, false, err
	}
	qj, err := json.Marshal(q.Questions)
	if err != nil {
		return Quiz{}, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Quiz{}, false, err
	}
	defer tx.Rollback()

	existed := true
	if err := tx.QueryRowContext(ctx, `SELECT created_at,revision FROM quizzes WHERE id=$1`, q.ID).Scan(&q.CreatedAt, &q.Revision); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, false, err
		}
		existed = false
		q.CreatedAt = s.now().Unix()
		q.Revision = 0
	}
	q.UpdatedAt = s.now().Unix()
	q.Revision++

	if existed {
		// recorded answers point at question positions of the old set; they
		// must go before the revision they reference does
		if _, err := tx.ExecContext(ctx, `DELETE FROM attempts WHERE quiz_id=$1`, q.ID); err != nil {
			return Quiz{}, false, err
		}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO quizzes (id,course_id,lesson_id,title,description,questions_json,max_score,revision,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET course_id=EXCLUDED.course_id, lesson_id=EXCLUDED.lesson_id, title=EXCLUDED.title,
			description=EXCLUDED.description, questions_json=EXCLUDED.questions_json, max_score=EXCLUDED.max_score,
			revision=EXCLUDED.revision, updated_at=EXCLUDED.updated_at`,
		q.ID, q.CourseID, q.LessonID, q.Title, q.Description, string(qj), q.MaxScore, q.Revision, q.CreatedAt, q.UpdatedAt)
	if err != nil {
		return Quiz{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return Quiz{}, false, err
	}
	return q, existed, nil
}

func (s *SQLStore) ListQuizzes(ctx context.Context, courseID string) ([]QuizSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,title,description FROM quizzes WHERE course_id=$1 ORDER BY created_at, id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []QuizSummary{}
	for rows.Next() {
		var q QuizSummary
		if err := rows.Scan(&q.ID, &q.Title, &q.Description); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetCourse(ctx context.Context, id string) (Course, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,description,owner_id,category,progress,created_at FROM courses WHERE id=$1`, id)
	var c Course
	if err := row.Scan(&c.ID, &c.Title, &c.Description, &c.OwnerID, &c.Category, &c.Progress, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, fmt.Errorf("%w: course %s", apperr.ErrNotFound, id)
		}
		return Course{}, err
	}
	return c, nil
}

// ListCourses returns every course, newest first.
func (s *SQLStore) ListCourses(ctx context.Context) ([]Course, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,title,description,owner_id,category,progress,created_at FROM courses ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Course{}
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.OwnerID, &c.Category, &c.Progress, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PutCourse creates or renames a course. The projected progress column is
// never written here.
func (s *SQLStore) PutCourse(ctx context.Context, c Course) (Course, error) {
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" || c.OwnerID == "" {
		return Course{}, fmt.Errorf("%w: title and owner are required", apperr.ErrValidation)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = s.now().Unix()
	_, err := s.db.ExecContext(ctx, `INSERT INTO courses (id,title,description,owner_id,category,progress,created_at)
		VALUES ($1,$2,$3,$4,$5,0,$6)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, description=EXCLUDED.description, category=EXCLUDED.category`,
		c.ID, c.Title, c.Description, c.OwnerID, c.Category, c.CreatedAt)
	if err != nil {
		return Course{}, err
	}
	return s.GetCourse(ctx, c.ID)
}

// PutLesson creates a lesson, or renames it when l.ID already exists in the
// same course. An id that belongs to another course is rejected.
func (s *SQLStore) PutLesson(ctx context.Context, l Lesson) (Lesson, error) {
	l.Title = strings.TrimSpace(l.Title)
	if l.Title == "" || l.CourseID == "" {
		return Lesson{}, fmt.Errorf("%w: title and courseId are required", apperr.ErrValidation)
	}
	if _, err := s.GetCourse(ctx, l.CourseID); err != nil {
		return Lesson{}, err
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = s.now().Unix()
	res, err := s.db.ExecContext(ctx, `INSERT INTO lessons (id,course_id,title,description,created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, description=EXCLUDED.description
		WHERE lessons.course_id=EXCLUDED.course_id`,
		l.ID, l.CourseID, l.Title, l.Description, l.CreatedAt)
	if err != nil {
		return Lesson{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Lesson{}, fmt.Errorf("%w: lesson %s belongs to another course", apperr.ErrValidation, l.ID)
	}
	return s.GetLesson(ctx, l.CourseID, l.ID)
}

func (s *SQLStore) GetLesson(ctx context.Context, courseID, lessonID string) (Lesson, error) {
	var l Lesson
	err := s.db.QueryRowContext(ctx, `SELECT id,course_id,title,description,created_at FROM lessons WHERE id=$1 AND course_id=$2`,
		lessonID, courseID).Scan(&l.ID, &l.CourseID, &l.Title, &l.Description, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Lesson{}, fmt.Errorf("%w: lesson %s in course %s", apperr.ErrNotFound, lessonID, courseID)
	}
	return l, err
}

// UpdateLesson rewrites the title and description of an existing lesson.
func (s *SQLStore) UpdateLesson(ctx context.Context, l Lesson) (Lesson, error) {
	l.Title = strings.TrimSpace(l.Title)
	if l.Title == "" {
		return Lesson{}, fmt.Errorf("%w: title is required", apperr.ErrValidation)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE lessons SET title=$1, description=$2 WHERE id=$3 AND course_id=$4`,
		l.Title, l.Description, l.ID, l.CourseID)
	if err != nil {
		return Lesson{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Lesson{}, fmt.Errorf("%w: lesson %s in course %s", apperr.ErrNotFound, l.ID, l.CourseID)
	}
	return s.GetLesson(ctx, l.CourseID, l.ID)
}

// DeleteLesson removes the lesson. Completion sets that still name it are
// cleaned up by the enrollment resync that follows.
func (s *SQLStore) DeleteLesson(ctx context.Context, courseID, lessonID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lessons WHERE id=$1 AND course_id=$2`, lessonID, courseID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: lesson %s in course %s", apperr.ErrNotFound, lessonID, courseID)
	}
	return nil
}

func (s *SQLStore) ListLessons(ctx context.Context, courseID string) ([]Lesson, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,course_id,title,description,created_at FROM lessons WHERE course_id=$1 ORDER BY created_at, id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Lesson{}
	for rows.Next() {
		var l Lesson
		if err := rows.Scan(&l.ID, &l.CourseID, &l.Title, &l.Description, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountLessons(ctx context.Context, courseID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lessons WHERE course_id=$1`, courseID).Scan(&n)
	return n, err
}

func (s *SQLStore) LessonInCourse(ctx context.Context, courseID, lessonID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM lessons WHERE id=$1 AND course_id=$2`, lessonID, courseID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}
