package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"invoice-backend/internal/shared/storage/object"
	"invoice-backend/internal/shared/telemetry"
)

// ErrDispatcherClosed is returned by Submit after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Starter starts the analysis of one invoice.
type Starter interface {
	Start(ctx context.Context, invoiceID string, loc object.Location) (string, error)
}

// StartError reports a start that failed in the background.
type StartError struct {
	InvoiceID string
	Err       error
}

func (e StartError) Error() string {
	return fmt.Sprintf("start invoice %s: %v", e.InvoiceID, e.Err)
}

func (e StartError) Unwrap() error { return e.Err }

type startTask struct {
	invoiceID string
	loc       object.Location
}

// Dispatcher runs starts off the request path. Submit queues a task and
// returns; a single worker started by Run executes tasks in order.
type Dispatcher struct {
	starter Starter
	tasks   chan startTask
	errs    chan StartError
	closed  chan struct{}
	once    sync.Once
}

// NewDispatcher creates a dispatcher with room for buffer queued starts.
func NewDispatcher(starter Starter, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		starter: starter,
		tasks:   make(chan startTask, buffer),
		errs:    make(chan StartError, buffer),
		closed:  make(chan struct{}),
	}
}

// Submit queues a start. It blocks only while the buffer is full.
func (d *Dispatcher) Submit(ctx context.Context, invoiceID string, loc object.Location) error {
	select {
	case <-d.closed:
		return ErrDispatcherClosed
	default:
	}
	select {
	case d.tasks <- startTask{invoiceID: invoiceID, loc: loc}:
		return nil
	case <-d.closed:
		return ErrDispatcherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Errors delivers start failures. Failures are dropped when nobody reads
// and the buffer is full; they are always logged.
func (d *Dispatcher) Errors() <-chan StartError {
	return d.errs
}

// Run executes queued starts until ctx is cancelled or Close is called.
// After Close, tasks already queued are still executed.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-d.tasks:
			d.start(ctx, t)
		case <-d.closed:
			for {
				select {
				case t := <-d.tasks:
					d.start(ctx, t)
				default:
					return nil
				}
			}
		}
	}
}

// Close stops accepting new tasks. It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.closed) })
}

func (d *Dispatcher) start(ctx context.Context, t startTask) {
	jobID, err := d.starter.Start(ctx, t.invoiceID, t.loc)
	if err != nil {
		telemetry.Error("pipeline.dispatch_failed", map[string]any{"invoice_id": t.invoiceID, "error": err})
		select {
		case d.errs <- StartError{InvoiceID: t.invoiceID, Err: err}:
		default:
		}
		return
	}
	telemetry.Info("pipeline.dispatched", map[string]any{"invoice_id": t.invoiceID, "job_id": jobID})
}
