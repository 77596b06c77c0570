package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/learnhub/learnhub-lms/internal/apperr"
	"github.com/learnhub/learnhub-lms/internal/rbac"
)

type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	PasswordHash string `json:"-"`
	CreatedAt    int64  `json:"createdAt"`
}

// UserInput is one row of a user upsert. Password is plaintext and only
// required for new users.
type UserInput struct {
	ID       string `json:"id"`
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"omitempty,oneof=student admin"`
	Password string `json:"password,omitempty"`
}

type UserStore struct {
	db   *sql.DB
	cost int
}

func NewUserStore(db *sql.DB) *UserStore { return &UserStore{db: db, cost: 12} }

// WithCost returns a copy hashing passwords at the given bcrypt cost.
func (s *UserStore) WithCost(cost int) *UserStore {
	cp := *s
	cp.cost = cost
	return &cp
}

// Upsert inserts or updates users matched by id or email in one transaction.
func (s *UserStore) Upsert(ctx context.Context, rows []UserInput) (inserted, updated int, err error) {
	type prepared struct {
		in    UserInput
		phash string
	}
	// hash before the transaction so no row is locked during bcrypt
	prep := make([]prepared, 0, len(rows))
	for _, r := range rows {
		r.Email = strings.ToLower(strings.TrimSpace(r.Email))
		if r.Role == "" {
			r.Role = rbac.RoleStudent
		}
		if r.Role != rbac.RoleStudent && r.Role != rbac.RoleAdmin {
			return 0, 0, fmt.Errorf("%w: invalid role %q", apperr.ErrValidation, r.Role)
		}
		var phash string
		if r.Password != "" {
			b, e := bcrypt.GenerateFromPassword([]byte(r.Password), s.cost)
			if e != nil {
				return 0, 0, e
			}
			phash = string(b)
		}
		prep = append(prep, prepared{in: r, phash: phash})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	now := time.Now().Unix()
	for _, p := range prep {
		r := p.in
		var existingID string
		err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id=$1 OR email=$2`, r.ID, r.Email).Scan(&existingID)
		switch {
		case err == nil:
			if p.phash != "" {
				_, err = tx.ExecContext(ctx, `UPDATE users SET name=$1, email=$2, role=$3, password_hash=$4 WHERE id=$5`,
					r.Name, r.Email, r.Role, p.phash, existingID)
			} else {
				_, err = tx.ExecContext(ctx, `UPDATE users SET name=$1, email=$2, role=$3 WHERE id=$4`,
					r.Name, r.Email, r.Role, existingID)
			}
			if err != nil {
				return inserted, updated, err
			}
			updated++
		case errors.Is(err, sql.ErrNoRows):
			if p.phash == "" {
				err = fmt.Errorf("%w: password required for new user %s", apperr.ErrValidation, r.Email)
				return inserted, updated, err
			}
			if r.ID == "" {
				r.ID = uuid.NewString()
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO users (id, name, email, password_hash, role, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
				r.ID, r.Name, r.Email, p.phash, r.Role, now)
			if err != nil {
				return inserted, updated, err
			}
			inserted++
		default:
			return inserted, updated, err
		}
	}
	return inserted, updated, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, role, password_hash, created_at FROM users WHERE email=$1`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("%w: user", apperr.ErrNotFound)
	}
	return u, err
}

func (s *UserStore) FindByID(ctx context.Context, id string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, role, password_hash, created_at FROM users WHERE id=$1`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("%w: user %s", apperr.ErrNotFound, id)
	}
	return u, err
}

// MinPasswordLen applies to self-registered accounts.
const MinPasswordLen = 8

// Register creates a student account. A taken email is apperr.ErrConflict.
func (s *UserStore) Register(ctx context.Context, name, email, password string) (User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return User{}, fmt.Errorf("%w: name, email and password are required", apperr.ErrValidation)
	}
	if len(password) < MinPasswordLen {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", apperr.ErrValidation, MinPasswordLen)
	}
	if _, err := s.FindByEmail(ctx, email); err == nil {
		return User{}, fmt.Errorf("%w: email %s is already registered", apperr.ErrConflict, email)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, err
	}
	u := User{ID: uuid.NewString(), Name: name, Email: email, Role: rbac.RoleStudent, CreatedAt: time.Now().Unix()}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, role, created_at) VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (email) DO NOTHING`,
		u.ID, u.Name, u.Email, string(hash), u.Role, u.CreatedAt)
	if err != nil {
		return User{}, err
	}
	// lost a race with another sign-up for the same email
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return User{}, fmt.Errorf("%w: email %s is already registered", apperr.ErrConflict, email)
	}
	return u, nil
}

// List returns users ordered by name, optionally filtered by role.
func (s *UserStore) List(ctx context.Context, role string) ([]User, error) {
	var rows *sql.Rows
	var err error
	if role == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT id, name, email, role, created_at FROM users ORDER BY name, id`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT id, name, email, role, created_at FROM users WHERE role=$1 ORDER BY name, id`, role)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SetRole changes the role of user id. Demoting the last admin is refused.
func (s *UserStore) SetRole(ctx context.Context, id, role string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if role != rbac.RoleStudent && role != rbac.RoleAdmin {
		return fmt.Errorf("%w: invalid role %q", apperr.ErrValidation, role)
	}
	var cur string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM users WHERE id=$1`, id).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: user %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	if cur == rbac.RoleAdmin && role != rbac.RoleAdmin {
		var admins int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE role=$1`, rbac.RoleAdmin).Scan(&admins); err != nil {
			return err
		}
		if admins <= 1 {
			return fmt.Errorf("%w: cannot demote the last admin", apperr.ErrValidation)
		}
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET role=$1 WHERE id=$2`, role, id)
	return err
}

// ChangePassword replaces the password of user id after checking the old one.
func (s *UserStore) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password required", apperr.ErrValidation)
	}
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id=$1`, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: user %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte(oldPassword)) != nil {
		return fmt.Errorf("%w: incorrect old password", apperr.ErrPermission)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, string(hash), id)
	return err
}
