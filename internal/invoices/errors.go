package invoices

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("invoice not found")
	ErrInvalidTransition = errors.New("invalid invoice status transition")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotPDF            = errors.New("only PDF files are allowed")
	ErrTooLarge          = errors.New("file exceeds the upload size limit")
	ErrUnreadablePDF     = errors.New("file is not a readable PDF")
	ErrNoExtract         = errors.New("invoice has no extraction result")
)

// ValidationError reports why an extract failed business validation.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invoice failed validation: %s", e.Reason)
}
