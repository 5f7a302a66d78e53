package users

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate rejects a second user with the same email.
	ErrDuplicate = errors.New("user already exists with this email")
)

type Repo interface {
	// FindOrCreate returns the user with user.Email, inserting user when absent.
	// The stored name of an existing user is kept.
	FindOrCreate(ctx context.Context, user User) (User, error)
	// Create inserts user and fails with ErrDuplicate when the email is taken.
	Create(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, userID string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context) ([]User, error)
	// Stats counts users; RecentUsers covers those created at or after since.
	Stats(ctx context.Context, since time.Time) (Stats, error)
}
