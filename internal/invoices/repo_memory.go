package invoices

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Invoice

	// OnDelete runs after an invoice is removed, standing in for ON DELETE CASCADE.
	OnDelete func(ctx context.Context, id string)
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Invoice)}
}

func (r *MemoryRepo) Create(ctx context.Context, inv Invoice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[inv.ID] = inv
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Invoice, error) {
	if err := ctx.Err(); err != nil {
		return Invoice{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.data[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

func (r *MemoryRepo) List(ctx context.Context, f Filter) ([]Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f = f.normalized()
	r.mu.RLock()
	out := make([]Invoice, 0, len(r.data))
	for _, inv := range r.data {
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		if f.UserID != "" && inv.UserID != f.UserID {
			continue
		}
		out = append(out, inv)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	if f.Offset >= len(out) {
		return []Invoice{}, nil
	}
	out = out[f.Offset:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryRepo) TransitionStatus(ctx context.Context, id string, to Status, at time.Time) (Invoice, error) {
	if err := ctx.Err(); err != nil {
		return Invoice{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.data[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	if !CanTransition(inv.Status, to) {
		return Invoice{}, ErrInvalidTransition
	}
	inv.Status = to
	inv.UpdatedAt = at
	if stampsProcessedAt(to) {
		stamp := at
		inv.ProcessedAt = &stamp
	}
	r.data[id] = inv
	return inv, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	_, ok := r.data[id]
	delete(r.data, id)
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if r.OnDelete != nil {
		r.OnDelete(ctx, id)
	}
	return nil
}

func (r *MemoryRepo) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := Stats{ByStatus: map[Status]int{}}
	for _, inv := range r.data {
		stats.Total++
		stats.TotalBytes += inv.SizeBytes
		stats.ByStatus[inv.Status]++
	}
	return stats, nil
}

var _ Repo = (*MemoryRepo)(nil)
