package users

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var ErrInvalidUser = errors.New("user name and a valid email are required")

const (
	// recentWindow is how far back Stats counts a user as recent.
	recentWindow = 30 * 24 * time.Hour
	// width of users.name and users.email
	maxFieldLen = 255
)

type Service struct {
	Repo Repo
	Now  func() time.Time
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// normalize trims the name and lowercases the email, rejecting blanks and
// malformed addresses.
func normalize(name, email string) (string, string, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || utf8.RuneCountInString(name) > maxFieldLen || utf8.RuneCountInString(email) > maxFieldLen {
		return "", "", ErrInvalidUser
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", "", ErrInvalidUser
	}
	return name, email, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindOrCreate resolves the uploader by email, creating the user on first upload.
func (s *Service) FindOrCreate(ctx context.Context, name, email string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	name, email, err := normalize(name, email)
	if err != nil {
		return User{}, err
	}
	return s.Repo.FindOrCreate(ctx, User{ID: uuid.NewString(), Name: name, Email: email})
}

// Create registers a new user. An email that is already taken fails with
// ErrDuplicate.
func (s *Service) Create(ctx context.Context, name, email string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	name, email, err := normalize(name, email)
	if err != nil {
		return User{}, err
	}
	return s.Repo.Create(ctx, User{ID: uuid.NewString(), Name: name, Email: email})
}

func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	email = normalizeEmail(email)
	if email == "" {
		return User{}, ErrInvalidUser
	}
	return s.Repo.GetByEmail(ctx, email)
}

// Stats counts all users and those created in the last 30 days.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if s == nil || s.Repo == nil {
		return Stats{}, errors.New("users service not configured")
	}
	return s.Repo.Stats(ctx, s.now().Add(-recentWindow))
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("users service not configured")
	}
	return s.Repo.List(ctx)
}
