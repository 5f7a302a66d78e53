package invoices

import (
	"time"

	"invoice-backend/internal/extracts"
)

// InvoiceResponse is the outward-facing representation of an invoice.
type InvoiceResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	FileName    string     `json:"fileName"`
	MimeType    string     `json:"mimeType"`
	SizeBytes   int64      `json:"sizeBytes"`
	PageCount   int        `json:"pageCount"`
	Status      Status     `json:"status"`
	UploadedAt  time.Time  `json:"uploadedAt"`
	ProcessedAt *time.Time `json:"processedAt"`
}

// DetailResponse adds the extract to an invoice.
type DetailResponse struct {
	InvoiceResponse
	Extract *extracts.Extract `json:"extract"`
}

func toResponse(inv Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:          inv.ID,
		UserID:      inv.UserID,
		FileName:    inv.FileName,
		MimeType:    inv.MimeType,
		SizeBytes:   inv.SizeBytes,
		PageCount:   inv.PageCount,
		Status:      inv.Status,
		UploadedAt:  inv.UploadedAt,
		ProcessedAt: inv.ProcessedAt,
	}
}
