package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mingyuchen/activity-tracker-go/user"
)

var _ user.Store = (*UserStore)(nil)

// UserStore persists users.
type UserStore struct {
	db *DB
}

// NewUserStore returns a UserStore over db.
func NewUserStore(db *DB) *UserStore { return &UserStore{db: db} }

const (
	qUserInsert = `
INSERT INTO users (id, email, password_hash)
VALUES ($1, $2, $3)
RETURNING created_at;`

	qUserByID = `
SELECT id, email, password_hash, created_at
FROM users
WHERE id = $1;`

	qUserByEmail = `
SELECT id, email, password_hash, created_at
FROM users
WHERE email = $1;`
)

// Create inserts u, assigning a fresh ID when unset. A duplicate email maps
// to user.ErrDuplicateEmail.
func (s *UserStore) Create(ctx context.Context, u *user.User) error {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	if err := s.db.Pool.QueryRow(ctx, qUserInsert, u.ID, u.Email, u.PasswordHash).
		Scan(&u.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return user.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID looks a user up by primary key.
func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	u := &user.User{}
	err := s.db.Pool.QueryRow(ctx, qUserByID, id).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("select user by id: %w", err)
	}
	return u, nil
}

// GetByEmail looks a user up by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	u := &user.User{}
	err := s.db.Pool.QueryRow(ctx, qUserByEmail, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("select user by email: %w", err)
	}
	return u, nil
}
