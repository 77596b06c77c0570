package enrollment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/learnhub/learnhub-lms/internal/apperr"
)

// Store persists enrollments.
type Store interface {
	Get(ctx context.Context, userID, courseID string) (Enrollment, error)
	// Create inserts e unless the (user, course) pair already has a row, and
	// returns whichever row is stored.
	Create(ctx context.Context, e Enrollment) (Enrollment, error)
	Save(ctx context.Context, e Enrollment) error
	ListByCourse(ctx context.Context, courseID string) ([]Enrollment, error)
	ListAll(ctx context.Context) ([]Listing, error)
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

const enrollmentCols = `id,user_id,course_id,completed_lessons_json,student_progress,created_at,updated_at`

func (s *SQLStore) Get(ctx context.Context, userID, courseID string) (Enrollment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+enrollmentCols+` FROM enrollments WHERE user_id=$1 AND course_id=$2`, userID, courseID)
	var e Enrollment
	var lessons string
	err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &lessons, &e.StudentProgress, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Enrollment{}, fmt.Errorf("%w: student not enrolled", apperr.ErrNotFound)
	}
	if err != nil {
		return Enrollment{}, err
	}
	if err := decodeLessons(lessons, &e); err != nil {
		return Enrollment{}, err
	}
	return e, nil
}

func decodeLessons(raw string, e *Enrollment) error {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return fmt.Errorf("decode lessons of enrollment %s: %w", e.ID, err)
	}
	e.CompletedLessons = normalizeSet(ids)
	return nil
}

func (s *SQLStore) Create(ctx context.Context, e Enrollment) (Enrollment, error) {
	buf, err := json.Marshal(normalizeSet(e.CompletedLessons))
	if err != nil {
		return Enrollment{}, err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO enrollments (`+enrollmentCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (user_id, course_id) DO NOTHING`,
		e.ID, e.UserID, e.CourseID, string(buf), e.StudentProgress, e.CreatedAt, e.UpdatedAt); err != nil {
		return Enrollment{}, err
	}
	return s.Get(ctx, e.UserID, e.CourseID)
}

func (s *SQLStore) Save(ctx context.Context, e Enrollment) error {
	buf, err := json.Marshal(normalizeSet(e.CompletedLessons))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE enrollments
		SET completed_lessons_json=$1, student_progress=$2, updated_at=$3
		WHERE id=$4`, string(buf), e.StudentProgress, e.UpdatedAt, e.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: enrollment %s", apperr.ErrNotFound, e.ID)
	}
	return nil
}

func (s *SQLStore) ListByCourse(ctx context.Context, courseID string) ([]Enrollment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+enrollmentCols+` FROM enrollments WHERE course_id=$1 ORDER BY created_at, id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Enrollment{}
	for rows.Next() {
		var e Enrollment
		var lessons string
		if err := rows.Scan(&e.ID, &e.UserID, &e.CourseID, &lessons, &e.StudentProgress, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if err := decodeLessons(lessons, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListAll(ctx context.Context) ([]Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.user_id, e.course_id, e.completed_lessons_json, e.student_progress, e.created_at, e.updated_at,
		       COALESCE(u.name,''), COALESCE(u.email,''), c.title, c.category
		  FROM enrollments e
		  JOIN courses c ON c.id = e.course_id
		  LEFT JOIN users u ON u.id = e.user_id
		 ORDER BY e.created_at DESC, e.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Listing{}
	for rows.Next() {
		var l Listing
		var lessons string
		if err := rows.Scan(&l.ID, &l.UserID, &l.CourseID, &lessons, &l.StudentProgress, &l.CreatedAt, &l.UpdatedAt,
			&l.StudentName, &l.StudentEmail, &l.CourseTitle, &l.CourseCategory); err != nil {
			return nil, err
		}
		if err := decodeLessons(lessons, &l.Enrollment); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
