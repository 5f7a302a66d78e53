package invoices

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTransitionsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if err := repo.Create(ctx, Invoice{ID: "inv-1", Status: StatusUploaded, UploadedAt: now}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := repo.TransitionStatus(ctx, "inv-1", StatusCompleted, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("uploaded->completed should be rejected, got %v", err)
	}
	if _, err := repo.TransitionStatus(ctx, "inv-1", StatusProcessing, now); err != nil {
		t.Fatalf("uploaded->processing: %v", err)
	}
	done, err := repo.TransitionStatus(ctx, "inv-1", StatusCompleted, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("processing->completed: %v", err)
	}
	if done.ProcessedAt == nil || !done.ProcessedAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("processed_at not stamped: %+v", done.ProcessedAt)
	}
	for _, to := range []Status{StatusUploaded, StatusProcessing, StatusFailed} {
		if _, err := repo.TransitionStatus(ctx, "inv-1", to, now); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("completed->%s should be rejected, got %v", to, err)
		}
	}
	if _, err := repo.TransitionStatus(ctx, "missing", StatusFailed, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepoListAndStats(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	seed := []Invoice{
		{ID: "a", UserID: "u1", Status: StatusUploaded, SizeBytes: 100, UploadedAt: base},
		{ID: "b", UserID: "u1", Status: StatusCompleted, SizeBytes: 200, UploadedAt: base.Add(time.Hour)},
		{ID: "c", UserID: "u2", Status: StatusCompleted, SizeBytes: 300, UploadedAt: base.Add(2 * time.Hour)},
	}
	for _, inv := range seed {
		if err := repo.Create(ctx, inv); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	completed, err := repo.List(ctx, Filter{Status: StatusCompleted})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(completed) != 2 || completed[0].ID != "c" {
		t.Fatalf("unexpected list %+v", completed)
	}
	mine, _ := repo.List(ctx, Filter{UserID: "u1", Limit: 1})
	if len(mine) != 1 || mine[0].ID != "b" {
		t.Fatalf("unexpected user list %+v", mine)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 || stats.TotalBytes != 600 || stats.ByStatus[StatusCompleted] != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestMemoryRepoDeleteRunsHook(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	var deleted string
	repo.OnDelete = func(ctx context.Context, id string) { deleted = id }
	_ = repo.Create(ctx, Invoice{ID: "inv-1", Status: StatusUploaded})

	if err := repo.Delete(ctx, "inv-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted != "inv-1" {
		t.Fatalf("hook not called")
	}
	if err := repo.Delete(ctx, "inv-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
