package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"invoice-backend/internal/shared/storage/db"
)

const userColumns = "id, name, email, created_at, updated_at"

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) FindOrCreate(ctx context.Context, user User) (User, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	const query = `
INSERT INTO users (id, name, email, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
RETURNING id, name, email, created_at, updated_at`
	var out User
	err := r.DB.QueryRowContext(ctx, query, user.ID, user.Name, user.Email).Scan(
		&out.ID,
		&out.Name,
		&out.Email,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return out, nil
}

func (r *PGRepo) Create(ctx context.Context, user User) (User, error) {
	const query = `
INSERT INTO users (id, name, email, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
RETURNING ` + userColumns
	var out User
	err := r.DB.QueryRowContext(ctx, query, user.ID, user.Name, user.Email).Scan(
		&out.ID,
		&out.Name,
		&out.Email,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrDuplicate
		}
		return User{}, err
	}
	return out, nil
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	return r.getOne(ctx, "id", userID)
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getOne(ctx, "email", email)
}

// getOne loads a single user; column is always a constant from this file.
func (r *PGRepo) getOne(ctx context.Context, column, value string) (User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE " + column + " = $1 LIMIT 1"
	var user User
	err := r.DB.QueryRowContext(ctx, query, value).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (r *PGRepo) List(ctx context.Context) ([]User, error) {
	const query = `
SELECT id, name, email, created_at, updated_at
FROM users
ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PGRepo) Stats(ctx context.Context, since time.Time) (Stats, error) {
	const query = `
SELECT COUNT(*), COUNT(*) FILTER (WHERE created_at >= $1)
FROM users`
	var stats Stats
	if err := r.DB.QueryRowContext(ctx, query, since).Scan(&stats.TotalUsers, &stats.RecentUsers); err != nil {
		return Stats{}, err
	}
	return stats, nil
}
