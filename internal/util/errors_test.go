package util

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSafeErrorResponse(t *testing.T) {
	t.Setenv("GIN_MODE", "debug")
	r := gin.New()
	r.GET("/boom", func(c *gin.Context) {
		SafeErrorResponse(c, http.StatusInternalServerError, "Failed to load buyers", errors.New("disk I/O error"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["success"] != false || body["message"] != "Failed to load buyers" || body["error"] != "disk I/O error" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestSafeErrorResponseHidesDetailsInRelease(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	r := gin.New()
	r.GET("/boom", func(c *gin.Context) {
		SafeErrorResponse(c, http.StatusBadGateway, "Upstream failed", errors.New("secret detail"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := body["error"]; ok {
		t.Fatalf("expected error detail to be hidden, got %v", body)
	}
}
