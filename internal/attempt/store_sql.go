package attempt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/learnhub/learnhub-lms/internal/apperr"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const attemptCols = `id,user_id,quiz_id,quiz_revision,answers_json,questions_answered,completed,current_score,started_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var ajson string
	if err := row.Scan(&a.ID, &a.UserID, &a.QuizID, &a.QuizRevision, &ajson, &a.QuestionsAnswered, &a.Completed, &a.CurrentScore, &a.StartedAt, &a.UpdatedAt); err != nil {
		return Attempt{}, err
	}
	if err := json.Unmarshal([]byte(ajson), &a.Answers); err != nil {
		return Attempt{}, fmt.Errorf("decode answers of attempt %s: %w", a.ID, err)
	}
	if a.Answers == nil {
		a.Answers = []Answer{}
	}
	return a, nil
}

func (s *SQLStore) Get(ctx context.Context, userID, quizID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE user_id=$1 AND quiz_id=$2`, userID, quizID)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, fmt.Errorf("%w: attempt", apperr.ErrNotFound)
	}
	return a, err
}

func (s *SQLStore) Insert(ctx context.Context, a Attempt) error {
	buf, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO attempts (`+attemptCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (user_id, quiz_id) DO NOTHING`,
		a.ID, a.UserID, a.QuizID, a.QuizRevision, string(buf), a.QuestionsAnswered, a.Completed, a.CurrentScore, a.StartedAt, a.UpdatedAt)
	if err != nil {
		// (quiz_id, quiz_revision) must name the current question set
		if stale, serr := s.staleRevision(ctx, a.QuizID, a.QuizRevision); serr == nil && stale {
			return fmt.Errorf("%w: quiz %s was replaced", apperr.ErrInvalidSequence, a.QuizID)
		}
		return err
	}
	return expectOneRow(res, "attempt already started")
}

func (s *SQLStore) staleRevision(ctx context.Context, quizID string, rev int64) (bool, error) {
	var cur int64
	err := s.db.QueryRowContext(ctx, `SELECT revision FROM quizzes WHERE id=$1`, quizID).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return cur != rev, nil
}

func (s *SQLStore) Update(ctx context.Context, a Attempt, prevAnswered int) error {
	buf, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE attempts
		SET answers_json=$1, questions_answered=$2, completed=$3, current_score=$4, updated_at=$5
		WHERE id=$6 AND questions_answered=$7`,
		string(buf), a.QuestionsAnswered, a.Completed, a.CurrentScore, a.UpdatedAt, a.ID, prevAnswered)
	if err != nil {
		return err
	}
	return expectOneRow(res, "attempt moved on")
}

func expectOneRow(res sql.Result, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%w: %s", apperr.ErrInvalidSequence, msg)
	}
	return nil
}

func (s *SQLStore) DeleteByQuiz(ctx context.Context, quizID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM attempts WHERE quiz_id=$1`, quizID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]Attempt, error) {
	q := `SELECT ` + attemptCols + ` FROM attempts WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if opts.QuizID != "" {
		q += ` AND quiz_id=` + arg(opts.QuizID)
	}
	if opts.UserID != "" {
		q += ` AND user_id=` + arg(opts.UserID)
	}
	if opts.Completed != nil {
		q += ` AND completed=` + arg(*opts.Completed)
	}
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q += ` ORDER BY started_at DESC, id LIMIT ` + arg(limit) + ` OFFSET ` + arg(max(opts.Offset, 0))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
