package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns all users with their role names.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	const query = `
SELECT u.id, u.username, u.full_name, u.is_active, u.created_at, u.updated_at,
       COALESCE(array_agg(ro.name) FILTER (WHERE ro.name IS NOT NULL), '{}')
FROM users u
LEFT JOIN user_roles ur ON ur.user_id = u.id
LEFT JOIN roles ro ON ro.id = ur.role_id
GROUP BY u.id
ORDER BY u.id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Username, &user.FullName, &user.IsActive, &user.CreatedAt, &user.UpdatedAt, &user.Roles); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// GetUser fetches a single user by ID.
func (r *Repository) GetUser(ctx context.Context, id int64) (*User, error) {
	const query = `
SELECT u.id, u.username, u.full_name, u.is_active, u.created_at, u.updated_at,
       COALESCE(array_agg(ro.name) FILTER (WHERE ro.name IS NOT NULL), '{}')
FROM users u
LEFT JOIN user_roles ur ON ur.user_id = u.id
LEFT JOIN roles ro ON ro.id = ur.role_id
WHERE u.id = $1
GROUP BY u.id`

	var user User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.FullName, &user.IsActive, &user.CreatedAt, &user.UpdatedAt, &user.Roles,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, httpx.ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a new account and returns its ID.
func (r *Repository) CreateUser(ctx context.Context, username, fullName, passwordHash string) (int64, error) {
	const query = `
INSERT INTO users (username, full_name, password_hash, is_active, created_at, updated_at)
VALUES ($1, $2, $3, TRUE, $4, $4)
RETURNING id`

	var id int64
	err := r.pool.QueryRow(ctx, query, username, fullName, passwordHash, time.Now().UTC()).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("username %q: %w", username, httpx.ErrDuplicate)
		}
		return 0, err
	}
	return id, nil
}

// UpdateUser changes profile fields on an existing account.
func (r *Repository) UpdateUser(ctx context.Context, id int64, fullName string, isActive bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET full_name = $2, is_active = $3, updated_at = $4 WHERE id = $1`,
		id, fullName, isActive, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

// SetPassword replaces the stored password hash.
func (r *Repository) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}
