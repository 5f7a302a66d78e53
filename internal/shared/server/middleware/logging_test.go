package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zapcore"

	"invoice-backend/internal/shared/telemetry"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	telemetry.SetOutput(zapcore.AddSync(&buf))
	t.Cleanup(func() { telemetry.SetOutput(zapcore.AddSync(os.Stdout)) })

	router := gin.New()
	router.Use(RequestID(), Logging())
	router.POST("/api/v1/invoices/:id/validate", func(c *gin.Context) {
		c.Set("invoiceId", c.Param("id"))
		c.Set("statusTransition", "completed->validated")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/inv-1/validate", nil)
	req.Header.Set("X-Request-Id", "req-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	var payload map[string]any
	if err := json.Unmarshal([]byte(last), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}

	required := []string{"request_id", "invoice_id", "duration_ms", "status", "status_transition", "route"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["request_id"] != "req-1" {
		t.Fatalf("unexpected request_id: %v", payload["request_id"])
	}
	if payload["invoice_id"] != "inv-1" {
		t.Fatalf("unexpected invoice_id: %v", payload["invoice_id"])
	}
	if payload["route"] != "/api/v1/invoices/:id/validate" {
		t.Fatalf("unexpected route: %v", payload["route"])
	}
	if payload["status_transition"] != "completed->validated" {
		t.Fatalf("unexpected status_transition: %v", payload["status_transition"])
	}
	if resp.Header().Get("X-Request-Id") != "req-1" {
		t.Fatalf("expected request id echoed")
	}
}
