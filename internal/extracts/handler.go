package extracts

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"invoice-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/extracts", h.list)
	rg.GET("/extracts/validation-report", h.validationReport)
	rg.GET("/extracts/missing-fields", h.missingFields)
}

func (h *Handler) list(c *gin.Context) {
	status := ProcessingStatus(c.Query("status"))
	switch status {
	case "", StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
	default:
		respond.Error(c, http.StatusBadRequest, "invalid_status", "unknown processing status", nil)
		return
	}
	items, err := h.Svc.List(c.Request.Context(), status)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list extracts", nil)
		return
	}
	if items == nil {
		items = []Extract{}
	}
	respond.OK(c, gin.H{"items": items})
}

func (h *Handler) validationReport(c *gin.Context) {
	rows, err := h.Svc.ValidationReport(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to build validation report", nil)
		return
	}
	respond.OK(c, gin.H{"items": rows})
}

func (h *Handler) missingFields(c *gin.Context) {
	rows, err := h.Svc.MissingFieldsReport(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to build missing fields report", nil)
		return
	}
	respond.OK(c, gin.H{"items": rows})
}
