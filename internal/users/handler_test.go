package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCreateUserHandler(t *testing.T) {
	r := newTestRouter(NewService(NewMemoryRepo()))

	resp := serve(r, http.MethodPost, "/api/v1/users", `{"name":"Erika Musterfrau","email":"Erika@Example.com"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", resp.Code, resp.Body.String())
	}
	var created User
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Email != "erika@example.com" {
		t.Fatalf("unexpected user %+v", created)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"duplicate email", `{"name":"Erika","email":"erika@example.com "}`, http.StatusConflict},
		{"missing name", `{"email":"anna@example.com"}`, http.StatusBadRequest},
		{"bad email", `{"name":"Anna","email":"anna"}`, http.StatusBadRequest},
		{"malformed body", `{"name":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := serve(r, http.MethodPost, "/api/v1/users", tt.body)
			if resp.Code != tt.want {
				t.Fatalf("status = %d, want %d body=%s", resp.Code, tt.want, resp.Body.String())
			}
		})
	}
}

func TestGetUserByIDOrEmail(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	user, err := svc.Create(context.Background(), "Max Mustermann", "max@example.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	r := newTestRouter(svc)

	for _, key := range []string{user.ID, "max@example.com", "MAX@example.com"} {
		resp := serve(r, http.MethodGet, "/api/v1/users/"+key, "")
		if resp.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d", key, resp.Code)
		}
		var got User
		if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.ID != user.ID {
			t.Fatalf("GET %s returned %s", key, got.ID)
		}
	}

	if resp := serve(r, http.MethodGet, "/api/v1/users/nobody@example.com", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("unknown email status = %d", resp.Code)
	}
}

func TestUserStatsHandler(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	for _, email := range []string{"a@example.com", "b@example.com"} {
		if _, err := svc.Create(context.Background(), "User", email); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	r := newTestRouter(svc)

	resp := serve(r, http.MethodGet, "/api/v1/users/stats", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("stats status = %d", resp.Code)
	}
	var stats Stats
	if err := json.Unmarshal(resp.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalUsers != 2 || stats.RecentUsers != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
