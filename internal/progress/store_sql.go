package progress

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/learnhub/learnhub-lms/internal/apperr"
)

type SQLStore struct{ db *sql.DB }

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) StudentProgress(ctx context.Context, courseID string) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT student_progress FROM enrollments WHERE course_id=$1`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLStore) SetCourseProgress(ctx context.Context, courseID string, progress float64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE courses SET progress=$1 WHERE id=$2`, progress, courseID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: course %s", apperr.ErrNotFound, courseID)
	}
	return nil
}

func (s *SQLStore) OwnerEnrollments(ctx context.Context, ownerID string) ([]EnrollmentRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.user_id, COALESCE(u.name,''), COALESCE(u.email,''), e.course_id, c.title, e.student_progress
		  FROM enrollments e
		  JOIN courses c ON c.id = e.course_id
		  LEFT JOIN users u ON u.id = e.user_id
		 WHERE c.owner_id = $1
		 ORDER BY e.created_at DESC, e.id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EnrollmentRow
	for rows.Next() {
		var r EnrollmentRow
		if err := rows.Scan(&r.UserID, &r.Name, &r.Email, &r.CourseID, &r.CourseTitle, &r.StudentProgress); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) OwnerCompletedAttempts(ctx context.Context, ownerID string) ([]AttemptRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.user_id, q.course_id, a.current_score, q.max_score
		  FROM attempts a
		  JOIN quizzes q ON q.id = a.quiz_id
		  JOIN courses c ON c.id = q.course_id
		 WHERE c.owner_id = $1 AND a.completed = $2`, ownerID, true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AttemptRow
	for rows.Next() {
		var r AttemptRow
		if err := rows.Scan(&r.UserID, &r.CourseID, &r.Score, &r.MaxScore); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
