package invoices

import (
	"context"
	"time"
)

// Repo defines persistence operations for invoices.
type Repo interface {
	Create(ctx context.Context, inv Invoice) error
	GetByID(ctx context.Context, id string) (Invoice, error)
	List(ctx context.Context, f Filter) ([]Invoice, error)
	// TransitionStatus moves the invoice to `to` only from an allowed
	// predecessor. It returns ErrNotFound or ErrInvalidTransition otherwise.
	TransitionStatus(ctx context.Context, id string, to Status, at time.Time) (Invoice, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (Stats, error)
}
