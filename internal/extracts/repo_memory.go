package extracts

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo for local development and tests.
type MemoryRepo struct {
	mu        sync.RWMutex
	byJob     map[string]*Extract
	byInvoice map[string]string
	now       func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byJob:     make(map[string]*Extract),
		byInvoice: make(map[string]string),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepo) Create(ctx context.Context, ext Extract) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byJob[ext.JobID]; ok {
		return ErrDuplicate
	}
	if _, ok := r.byInvoice[ext.InvoiceID]; ok {
		return ErrDuplicate
	}
	now := r.now()
	if ext.CreatedAt.IsZero() {
		ext.CreatedAt = now
	}
	ext.UpdatedAt = now
	stored := ext
	r.byJob[ext.JobID] = &stored
	r.byInvoice[ext.InvoiceID] = ext.JobID
	return nil
}

func (r *MemoryRepo) GetByJobID(ctx context.Context, jobID string) (Extract, error) {
	if err := ctx.Err(); err != nil {
		return Extract{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext, ok := r.byJob[jobID]
	if !ok {
		return Extract{}, ErrNotFound
	}
	return *ext, nil
}

func (r *MemoryRepo) GetByInvoiceID(ctx context.Context, invoiceID string) (Extract, error) {
	if err := ctx.Err(); err != nil {
		return Extract{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	jobID, ok := r.byInvoice[invoiceID]
	if !ok {
		return Extract{}, ErrNotFound
	}
	return *r.byJob[jobID], nil
}

func (r *MemoryRepo) Complete(ctx context.Context, jobID string, fields Fields, confidence float64) (bool, error) {
	return r.finish(ctx, jobID, func(ext *Extract) {
		ext.ProcessingStatus = StatusCompleted
		ext.Fields = fields
		ext.Confidence = &confidence
	})
}

func (r *MemoryRepo) Fail(ctx context.Context, jobID string) (bool, error) {
	return r.finish(ctx, jobID, func(ext *Extract) {
		ext.ProcessingStatus = StatusFailed
	})
}

func (r *MemoryRepo) finish(ctx context.Context, jobID string, apply func(*Extract)) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ext, ok := r.byJob[jobID]
	if !ok || ext.ProcessingStatus != StatusProcessing {
		return false, nil
	}
	apply(ext)
	ext.UpdatedAt = r.now()
	return true, nil
}

// DeleteByInvoiceID mirrors the ON DELETE CASCADE of the Postgres schema.
func (r *MemoryRepo) DeleteByInvoiceID(ctx context.Context, invoiceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if jobID, ok := r.byInvoice[invoiceID]; ok {
		delete(r.byJob, jobID)
		delete(r.byInvoice, invoiceID)
	}
}

func (r *MemoryRepo) List(ctx context.Context, status ProcessingStatus) ([]Extract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Extract, 0, len(r.byJob))
	for _, ext := range r.byJob {
		if status != "" && ext.ProcessingStatus != status {
			continue
		}
		out = append(out, *ext)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
