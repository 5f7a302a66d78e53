package extracts

import (
	"context"
	"errors"
)

// ValidationRow is one line of the validation report.
type ValidationRow struct {
	InvoiceID        string   `json:"invoiceId"`
	InvoiceNumber    *string  `json:"invoiceNumber"`
	TotalGross       *float64 `json:"totalGross"`
	ValidationStatus string   `json:"validationStatus"`
}

// MissingFieldsRow lists the unset fields of an extract lacking required data.
type MissingFieldsRow struct {
	InvoiceID     string   `json:"invoiceId"`
	JobID         string   `json:"textractJobId"`
	MissingFields []string `json:"missingFields"`
}

type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

func (s *Service) List(ctx context.Context, status ProcessingStatus) ([]Extract, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("extracts service not configured")
	}
	return s.Repo.List(ctx, status)
}

// ForInvoice returns the extract for an invoice, or ErrNotFound.
func (s *Service) ForInvoice(ctx context.Context, invoiceID string) (Extract, error) {
	if s == nil || s.Repo == nil {
		return Extract{}, errors.New("extracts service not configured")
	}
	return s.Repo.GetByInvoiceID(ctx, invoiceID)
}

// ValidationReport evaluates every completed extract.
func (s *Service) ValidationReport(ctx context.Context) ([]ValidationRow, error) {
	items, err := s.List(ctx, StatusCompleted)
	if err != nil {
		return nil, err
	}
	out := make([]ValidationRow, 0, len(items))
	for _, ext := range items {
		out = append(out, ValidationRow{
			InvoiceID:        ext.InvoiceID,
			InvoiceNumber:    ext.InvoiceNumber,
			TotalGross:       ext.TotalGross,
			ValidationStatus: Validate(ext.Fields),
		})
	}
	return out, nil
}

// MissingFieldsReport lists completed extracts where a required field is unset.
func (s *Service) MissingFieldsReport(ctx context.Context) ([]MissingFieldsRow, error) {
	items, err := s.List(ctx, StatusCompleted)
	if err != nil {
		return nil, err
	}
	out := []MissingFieldsRow{}
	for _, ext := range items {
		if !MissingRequired(ext.Fields) {
			continue
		}
		out = append(out, MissingFieldsRow{
			InvoiceID:     ext.InvoiceID,
			JobID:         ext.JobID,
			MissingFields: ext.Missing(),
		})
	}
	return out, nil
}
