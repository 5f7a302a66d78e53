package invoices

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"invoice-backend/internal/extracts"
	"invoice-backend/internal/pdftext"
	"invoice-backend/internal/shared/metrics"
	"invoice-backend/internal/shared/storage/object"
	"invoice-backend/internal/shared/telemetry"
	"invoice-backend/internal/users"
)

const (
	mimePDF          = "application/pdf"
	defaultMaxUpload = 10 << 20
)

// JobSubmitter hands a freshly uploaded invoice to background analysis.
type JobSubmitter interface {
	Submit(ctx context.Context, invoiceID string, loc object.Location) error
}

// UploadInput carries the multipart upload fields.
type UploadInput struct {
	UserName string
	Email    string
	FileName string
	Size     int64
	Body     io.Reader
}

// Detail is an invoice together with its extraction row, if any.
type Detail struct {
	Invoice Invoice
	Extract *extracts.Extract
}

// Service contains business logic for invoices.
type Service struct {
	Store      object.ObjectStore
	Repo       Repo
	Users      *users.Service
	Extracts   *extracts.Service
	Jobs       JobSubmitter
	MaxBytes   int64
	PresignTTL time.Duration
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) maxBytes() int64 {
	if s.MaxBytes > 0 {
		return s.MaxBytes
	}
	return defaultMaxUpload
}

// Upload validates the PDF, stores it, records the invoice and submits the
// analysis job. Start failures never fail the upload; they surface later as
// the invoice status.
func (s *Service) Upload(ctx context.Context, in UploadInput) (Invoice, error) {
	if in.Body == nil || strings.TrimSpace(in.FileName) == "" {
		return Invoice{}, fmt.Errorf("%w: file is required", ErrInvalidInput)
	}
	if !strings.EqualFold(filepath.Ext(in.FileName), ".pdf") {
		return Invoice{}, ErrNotPDF
	}
	limit := s.maxBytes()
	if in.Size > limit {
		return Invoice{}, ErrTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(in.Body, limit+1))
	if err != nil {
		return Invoice{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return Invoice{}, ErrTooLarge
	}
	if http.DetectContentType(data) != mimePDF {
		return Invoice{}, ErrNotPDF
	}
	info, err := pdftext.Inspect(data)
	if err != nil {
		return Invoice{}, ErrUnreadablePDF
	}

	user, err := s.Users.FindOrCreate(ctx, in.UserName, in.Email)
	if err != nil {
		if errors.Is(err, users.ErrInvalidUser) {
			return Invoice{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return Invoice{}, fmt.Errorf("resolve user: %w", err)
	}

	obj, err := s.Store.Save(ctx, user.ID, in.FileName, bytes.NewReader(data))
	if err != nil {
		return Invoice{}, fmt.Errorf("store invoice: %w", err)
	}

	now := s.now()
	inv := Invoice{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		FileName:   in.FileName,
		StorageKey: obj.Key,
		SizeBytes:  obj.Size,
		MimeType:   obj.MimeType,
		PageCount:  info.Pages,
		Status:     StatusUploaded,
		UploadedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.Create(ctx, inv); err != nil {
		if delErr := s.Store.Delete(ctx, obj.Key); delErr != nil {
			telemetry.Error("invoice.orphan_blob", map[string]any{"storage_key": obj.Key, "err": delErr})
		}
		return Invoice{}, fmt.Errorf("save invoice: %w", err)
	}
	metrics.ObserveUploadBytes(obj.Size)
	telemetry.Info("invoice.uploaded", map[string]any{
		"invoice_id": inv.ID,
		"user_id":    user.ID,
		"size_bytes": obj.Size,
		"pages":      info.Pages,
	})

	if s.Jobs != nil {
		if err := s.Jobs.Submit(ctx, inv.ID, s.Store.Locate(obj.Key)); err != nil {
			telemetry.Error("invoice.submit_failed", map[string]any{"invoice_id": inv.ID, "err": err})
			if failed, tErr := s.Repo.TransitionStatus(ctx, inv.ID, StatusFailed, s.now()); tErr == nil {
				inv = failed
			}
		}
	}
	return inv, nil
}

// List returns invoices matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Invoice, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	return s.Repo.List(ctx, f)
}

// Get returns the invoice and its extract.
func (s *Service) Get(ctx context.Context, id string) (Detail, error) {
	inv, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	detail := Detail{Invoice: inv}
	if s.Extracts == nil {
		return detail, nil
	}
	ext, err := s.Extracts.ForInvoice(ctx, id)
	switch {
	case err == nil:
		detail.Extract = &ext
	case errors.Is(err, extracts.ErrNotFound):
	default:
		return Detail{}, fmt.Errorf("load extract: %w", err)
	}
	return detail, nil
}

// DownloadURL returns a presigned URL for the stored PDF and its expiry.
func (s *Service) DownloadURL(ctx context.Context, id string) (string, time.Time, error) {
	inv, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return "", time.Time{}, err
	}
	ttl := s.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	url, err := s.Store.Presign(ctx, inv.StorageKey, ttl)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign: %w", err)
	}
	return url, s.now().Add(ttl), nil
}

// Delete removes the invoice rows and then the stored PDF.
func (s *Service) Delete(ctx context.Context, id string) error {
	inv, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, inv.StorageKey); err != nil {
		telemetry.Error("invoice.blob_delete_failed", map[string]any{"invoice_id": id, "storage_key": inv.StorageKey, "err": err})
	}
	telemetry.Info("invoice.deleted", map[string]any{"invoice_id": id, "status": string(inv.Status)})
	return nil
}

// Validate promotes a completed invoice to validated when its extract passes
// the business rules.
func (s *Service) Validate(ctx context.Context, id string) (Invoice, error) {
	inv, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if !CanTransition(inv.Status, StatusValidated) {
		return Invoice{}, ErrInvalidTransition
	}
	ext, err := s.Extracts.ForInvoice(ctx, id)
	if err != nil {
		if errors.Is(err, extracts.ErrNotFound) {
			return Invoice{}, ErrNoExtract
		}
		return Invoice{}, fmt.Errorf("load extract: %w", err)
	}
	if reason := extracts.Validate(ext.Fields); reason != extracts.ValidationValid {
		return Invoice{}, ValidationError{Reason: reason}
	}
	updated, err := s.Repo.TransitionStatus(ctx, id, StatusValidated, s.now())
	if err != nil {
		return Invoice{}, err
	}
	telemetry.Info("invoice.status", map[string]any{"invoice_id": id, "status_transition": "completed->validated"})
	return updated, nil
}

// Stats aggregates invoices by status.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.Repo.Stats(ctx)
}
