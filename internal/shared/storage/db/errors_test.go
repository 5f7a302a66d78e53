package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("insert extract: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(wrapped) {
		t.Fatalf("expected wrapped 23505 to match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("foreign key violation should not match")
	}
	if IsUniqueViolation(errors.New("boom")) {
		t.Fatalf("plain error should not match")
	}
}

func TestIsDataException(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"22003", true},
		{"22001", true},
		{"22P02", true},
		{"23505", false},
		{"42P01", false},
	}
	for _, tc := range cases {
		err := fmt.Errorf("update extract: %w", &pgconn.PgError{Code: tc.code})
		if got := IsDataException(err); got != tc.want {
			t.Fatalf("IsDataException(%s) = %v, want %v", tc.code, got, tc.want)
		}
	}
	if IsDataException(errors.New("boom")) {
		t.Fatalf("plain error should not match")
	}
}
