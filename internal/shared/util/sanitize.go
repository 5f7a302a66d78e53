package util

import (
	"errors"
	"strings"
	"unicode"
)

// SanitizeFileName removes path separators, whitespace runs and control
// characters, and rejects traversal patterns.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == '/' || r == '\\' || unicode.IsSpace(r):
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
			lastUnderscore = false
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		return "", errors.New("invalid file name")
	}
	return s, nil
}
