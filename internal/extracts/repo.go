package extracts

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("extract not found")
	ErrDuplicate = errors.New("extract already exists for invoice or job")
	// ErrInvalidData means the store rejected a field value. Retrying the
	// same write cannot succeed.
	ErrInvalidData = errors.New("extract field rejected by store")
)

// Repo persists extraction rows.
type Repo interface {
	// Create inserts a new row. A second row for the same invoice or job id
	// fails with ErrDuplicate.
	Create(ctx context.Context, ext Extract) error
	GetByJobID(ctx context.Context, jobID string) (Extract, error)
	GetByInvoiceID(ctx context.Context, invoiceID string) (Extract, error)
	// Complete stores fields and marks the row completed, only while it is
	// still processing. applied is false when another caller got there first.
	// A value the store cannot hold fails with ErrInvalidData.
	Complete(ctx context.Context, jobID string, fields Fields, confidence float64) (applied bool, err error)
	// Fail marks the row failed, only while it is still processing.
	Fail(ctx context.Context, jobID string) (applied bool, err error)
	List(ctx context.Context, status ProcessingStatus) ([]Extract, error)
}
