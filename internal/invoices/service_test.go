package invoices

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"invoice-backend/internal/extracts"
	"invoice-backend/internal/pdftext/pdftest"
	"invoice-backend/internal/shared/storage/object"
	"invoice-backend/internal/shared/storage/object/local"
	"invoice-backend/internal/users"
)

type recordingSubmitter struct {
	mu   sync.Mutex
	ids  []string
	locs []object.Location
	err  error
}

func (r *recordingSubmitter) Submit(ctx context.Context, invoiceID string, loc object.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, invoiceID)
	r.locs = append(r.locs, loc)
	return r.err
}

type fixture struct {
	svc      *Service
	repo     *MemoryRepo
	extracts *extracts.MemoryRepo
	jobs     *recordingSubmitter
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := NewMemoryRepo()
	extRepo := extracts.NewMemoryRepo()
	repo.OnDelete = extRepo.DeleteByInvoiceID
	jobs := &recordingSubmitter{}
	svc := &Service{
		Store:      local.New(t.TempDir()),
		Repo:       repo,
		Users:      users.NewService(users.NewMemoryRepo()),
		Extracts:   extracts.NewService(extRepo),
		Jobs:       jobs,
		PresignTTL: time.Hour,
	}
	return fixture{svc: svc, repo: repo, extracts: extRepo, jobs: jobs}
}

func samplePDF() []byte {
	return pdftest.Build([]string{"Rechnungsnummer: RE-2024-001", "Gesamtbetrag: 4.046,00 EUR"})
}

func TestUploadStoresAndSubmits(t *testing.T) {
	f := newFixture(t)
	data := samplePDF()

	inv, err := f.svc.Upload(context.Background(), UploadInput{
		UserName: "Max Mustermann",
		Email:    "max@example.com",
		FileName: "rechnung.pdf",
		Size:     int64(len(data)),
		Body:     bytes.NewReader(data),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if inv.Status != StatusUploaded || inv.PageCount != 1 || inv.SizeBytes != int64(len(data)) {
		t.Fatalf("unexpected invoice %+v", inv)
	}
	if len(f.jobs.ids) != 1 || f.jobs.ids[0] != inv.ID {
		t.Fatalf("job not submitted: %v", f.jobs.ids)
	}
	if f.jobs.locs[0].Key != inv.StorageKey {
		t.Fatalf("location = %+v, key = %s", f.jobs.locs[0], inv.StorageKey)
	}
}

func TestUploadSubmitFailureMarksInvoiceFailed(t *testing.T) {
	f := newFixture(t)
	f.jobs.err = errors.New("dispatcher closed")
	data := samplePDF()

	inv, err := f.svc.Upload(context.Background(), UploadInput{
		UserName: "Max", Email: "max@example.com", FileName: "r.pdf", Body: bytes.NewReader(data),
	})
	if err != nil {
		t.Fatalf("upload should still succeed: %v", err)
	}
	if inv.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", inv.Status)
	}
}

func TestUploadRejectsInvalidFiles(t *testing.T) {
	f := newFixture(t)
	f.svc.MaxBytes = 64 << 10
	pdf := samplePDF()

	tests := []struct {
		name string
		in   UploadInput
		want error
	}{
		{"missing file", UploadInput{UserName: "A", Email: "a@b.de", FileName: "x.pdf"}, ErrInvalidInput},
		{"wrong extension", UploadInput{UserName: "A", Email: "a@b.de", FileName: "x.txt", Body: bytes.NewReader(pdf)}, ErrNotPDF},
		{"not a pdf", UploadInput{UserName: "A", Email: "a@b.de", FileName: "x.pdf", Body: bytes.NewReader([]byte("plain text"))}, ErrNotPDF},
		{"broken pdf", UploadInput{UserName: "A", Email: "a@b.de", FileName: "x.pdf", Body: bytes.NewReader([]byte("%PDF-1.4\ngarbage"))}, ErrUnreadablePDF},
		{"too large", UploadInput{UserName: "A", Email: "a@b.de", FileName: "x.pdf", Body: bytes.NewReader(append([]byte("%PDF-1.4\n"), make([]byte, 70<<10)...))}, ErrTooLarge},
		{"declared too large", UploadInput{UserName: "A", Email: "a@b.de", FileName: "x.pdf", Size: 1 << 30, Body: bytes.NewReader(pdf)}, ErrTooLarge},
		{"missing email", UploadInput{UserName: "A", FileName: "x.pdf", Body: bytes.NewReader(pdf)}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Upload(context.Background(), tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if len(f.jobs.ids) != 0 {
		t.Fatalf("no job should be submitted for rejected uploads")
	}
}

func completeInvoice(t *testing.T, f fixture, id string, fields extracts.Fields) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.repo.TransitionStatus(ctx, id, StatusProcessing, time.Now()); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	if err := f.extracts.Create(ctx, extracts.Extract{ID: "e-" + id, InvoiceID: id, JobID: "job-" + id, ProcessingStatus: extracts.StatusProcessing}); err != nil {
		t.Fatalf("create extract: %v", err)
	}
	if _, err := f.extracts.Complete(ctx, "job-"+id, fields, 0.9); err != nil {
		t.Fatalf("complete extract: %v", err)
	}
	if _, err := f.repo.TransitionStatus(ctx, id, StatusCompleted, time.Now()); err != nil {
		t.Fatalf("to completed: %v", err)
	}
}

func TestValidatePromotesOnlyValidExtracts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"good", "bad"} {
		if err := f.repo.Create(ctx, Invoice{ID: id, Status: StatusUploaded}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	number, sender, receiver, total := "RE-1", "Muster GmbH", "Kunde AG", 119.0
	completeInvoice(t, f, "good", extracts.Fields{InvoiceNumber: &number, SenderAddress: &sender, ReceiverAddress: &receiver, TotalGross: &total})
	completeInvoice(t, f, "bad", extracts.Fields{InvoiceNumber: &number})

	inv, err := f.svc.Validate(ctx, "good")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if inv.Status != StatusValidated {
		t.Fatalf("status = %s", inv.Status)
	}

	_, err = f.svc.Validate(ctx, "bad")
	var vErr ValidationError
	if !errors.As(err, &vErr) || vErr.Reason != extracts.ValidationMissingSender {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := f.svc.Validate(ctx, "good"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second validate should be rejected, got %v", err)
	}
}

func TestGetIncludesExtractAndDeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	data := samplePDF()
	inv, err := f.svc.Upload(ctx, UploadInput{UserName: "Max", Email: "max@example.com", FileName: "r.pdf", Body: bytes.NewReader(data)})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	detail, err := f.svc.Get(ctx, inv.ID)
	if err != nil || detail.Extract != nil {
		t.Fatalf("Get before extraction = %+v, %v", detail, err)
	}
	completeInvoice(t, f, inv.ID, extracts.Fields{})
	detail, err = f.svc.Get(ctx, inv.ID)
	if err != nil || detail.Extract == nil || detail.Invoice.Status != StatusCompleted {
		t.Fatalf("Get after extraction = %+v, %v", detail, err)
	}

	url, expires, err := f.svc.DownloadURL(ctx, inv.ID)
	if err != nil || url == "" || expires.IsZero() {
		t.Fatalf("DownloadURL = %q %v %v", url, expires, err)
	}

	if err := f.svc.Delete(ctx, inv.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, inv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.extracts.GetByJobID(ctx, "job-"+inv.ID); !errors.Is(err, extracts.ErrNotFound) {
		t.Fatalf("extract should be removed with the invoice, got %v", err)
	}
	if _, err := f.svc.Store.Open(ctx, inv.StorageKey); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("blob should be removed, got %v", err)
	}
}
