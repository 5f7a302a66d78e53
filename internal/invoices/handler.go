package invoices

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"invoice-backend/internal/shared/server/respond"
)

// multipart framing allowance on top of the file limit
const formOverhead = 1 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches invoice routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/invoices/upload", h.upload)
	rg.GET("/invoices", h.list)
	rg.GET("/invoices/stats", h.stats)
	rg.GET("/invoices/:id", h.get)
	rg.GET("/invoices/:id/download-url", h.downloadURL)
	rg.POST("/invoices/:id/validate", h.validate)
	rg.DELETE("/invoices/:id", h.delete)
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Svc.maxBytes()+formOverhead)

	fileHeader, err := c.FormFile("invoice")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", ErrTooLarge.Error(), nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "invoice file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	inv, err := h.Svc.Upload(c.Request.Context(), UploadInput{
		UserName: c.PostForm("userName"),
		Email:    c.PostForm("email"),
		FileName: fileHeader.Filename,
		Size:     fileHeader.Size,
		Body:     file,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrNotPDF), errors.Is(err, ErrUnreadablePDF):
			respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_file", err.Error(), nil)
		case errors.Is(err, ErrTooLarge):
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to upload invoice", nil)
		}
		return
	}

	c.Set("invoiceId", inv.ID)
	respond.Created(c, gin.H{
		"message": "invoice uploaded, processing started",
		"invoice": toResponse(inv),
	})
}

func (h *Handler) list(c *gin.Context) {
	f := Filter{Status: Status(c.Query("status")), UserID: c.Query("userId")}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Offset = parsed
		}
	}

	items, err := h.Svc.List(c.Request.Context(), f)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list invoices", nil)
		return
	}
	resp := make([]InvoiceResponse, 0, len(items))
	for _, inv := range items {
		resp = append(resp, toResponse(inv))
	}
	respond.OK(c, gin.H{"items": resp})
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.Svc.Stats(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load stats", nil)
		return
	}
	respond.OK(c, stats)
}

func (h *Handler) get(c *gin.Context) {
	detail, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to load invoice")
		return
	}
	respond.OK(c, DetailResponse{InvoiceResponse: toResponse(detail.Invoice), Extract: detail.Extract})
}

func (h *Handler) downloadURL(c *gin.Context) {
	url, expiresAt, err := h.Svc.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to create download url")
		return
	}
	respond.OK(c, gin.H{"url": url, "expiresAt": expiresAt})
}

func (h *Handler) validate(c *gin.Context) {
	c.Set("invoiceId", c.Param("id"))
	inv, err := h.Svc.Validate(c.Request.Context(), c.Param("id"))
	if err != nil {
		var vErr ValidationError
		switch {
		case errors.As(err, &vErr):
			respond.Error(c, http.StatusUnprocessableEntity, "validation_failed", vErr.Reason, nil)
		case errors.Is(err, ErrInvalidTransition):
			respond.Error(c, http.StatusConflict, "invalid_status", "only completed invoices can be validated", nil)
		case errors.Is(err, ErrNoExtract):
			respond.Error(c, http.StatusConflict, "no_extract", err.Error(), nil)
		default:
			h.fail(c, err, "failed to validate invoice")
		}
		return
	}
	c.Set("statusTransition", "completed->validated")
	respond.OK(c, toResponse(inv))
}

func (h *Handler) delete(c *gin.Context) {
	c.Set("invoiceId", c.Param("id"))
	if err := h.Svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "failed to delete invoice")
		return
	}
	respond.NoContent(c)
}

func (h *Handler) fail(c *gin.Context, err error, message string) {
	if errors.Is(err, ErrNotFound) {
		respond.Error(c, http.StatusNotFound, "not_found", "invoice not found", nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal_error", message, nil)
}
