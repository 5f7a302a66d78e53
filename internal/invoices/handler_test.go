package invoices

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(f fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(f.svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func multipartUpload(t *testing.T, fileName string, data []byte, withFile bool) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("userName", "Max Mustermann")
	_ = w.WriteField("email", "max@example.com")
	if withFile {
		part, err := w.CreateFormFile("invoice", fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, resp.Body.String())
	}
	return payload.Error.Code
}

func TestUploadHandlerStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		data     []byte
		withFile bool
		status   int
		code     string
	}{
		{name: "missing file", withFile: false, status: http.StatusBadRequest, code: "validation_error"},
		{name: "not a pdf", fileName: "notes.txt", data: []byte("hello"), withFile: true, status: http.StatusUnsupportedMediaType, code: "unsupported_file"},
		{name: "pdf extension, text body", fileName: "fake.pdf", data: []byte("plain text"), withFile: true, status: http.StatusUnsupportedMediaType, code: "unsupported_file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			r := newTestRouter(f)
			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, multipartUpload(t, tt.fileName, tt.data, tt.withFile))
			if resp.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", resp.Code, tt.status, resp.Body.String())
			}
			if got := errorCode(t, resp); got != tt.code {
				t.Fatalf("code = %q, want %q", got, tt.code)
			}
			if len(f.jobs.ids) != 0 {
				t.Fatalf("expected no job submitted")
			}
		})
	}
}

func TestUploadHandlerCreatesInvoice(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, multipartUpload(t, "rechnung.pdf", samplePDF(), true))
	if resp.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", resp.Code, resp.Body.String())
	}
	var payload struct {
		Invoice InvoiceResponse `json:"invoice"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Invoice.Status != StatusUploaded || payload.Invoice.PageCount != 1 {
		t.Fatalf("unexpected invoice: %+v", payload.Invoice)
	}
	if len(f.jobs.ids) != 1 || f.jobs.ids[0] != payload.Invoice.ID {
		t.Fatalf("expected job for %s, got %v", payload.Invoice.ID, f.jobs.ids)
	}
}

func TestInvoiceHandlerNotFoundAndConflicts(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/missing", nil))
	if resp.Code != http.StatusNotFound || errorCode(t, resp) != "not_found" {
		t.Fatalf("expected 404 not_found, got %d %s", resp.Code, resp.Body.String())
	}

	upload := httptest.NewRecorder()
	r.ServeHTTP(upload, multipartUpload(t, "rechnung.pdf", samplePDF(), true))
	var created struct {
		Invoice InvoiceResponse `json:"invoice"`
	}
	if err := json.Unmarshal(upload.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/invoices/"+created.Invoice.ID+"/validate", nil))
	if resp.Code != http.StatusConflict || errorCode(t, resp) != "invalid_status" {
		t.Fatalf("expected 409 invalid_status, got %d %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/invoices?status=bogus", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/api/v1/invoices/"+created.Invoice.ID, nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+created.Invoice.ID, nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}
}
