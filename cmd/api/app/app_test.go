package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/top-ti/inventory-go/internal/errs"
)

func TestRequestIDHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := NewApp(Config{Env: "test"}, nil, nil, nil, nil)
	a.R.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	a.R.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header")
	}
}

func TestRequestIDReusesInboundHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := NewApp(Config{Env: "test"}, nil, nil, nil, nil)
	a.R.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "upstream-42")
	a.R.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "upstream-42" {
		t.Fatalf("request id = %q, want upstream-42", got)
	}
}

func TestRateLimitEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := NewApp(Config{Env: "test"}, nil, nil, nil, nil)
	a.R.GET("/limited", RateLimit(rate.NewLimiter(0, 0)), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	rr := httptest.NewRecorder()
	a.R.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/limited", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	var env Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Error == nil || env.Error.Code != "rate_limited" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestErrorsEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := NewApp(Config{Env: "test"}, nil, nil, nil, nil)
	a.R.GET("/boom", func(c *gin.Context) {
		AbortError(c, http.StatusBadRequest, "validation_failed", "validation failed", map[string]string{"value": "must be greater than zero"})
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	a.R.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var env Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Error == nil || env.Error.Code != "validation_failed" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.Error.FieldErrors["value"] != "must be greater than zero" {
		t.Fatalf("missing field error: %+v", env.Error.FieldErrors)
	}
}

func TestFailStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", errs.NewValidation("location", "is required"), http.StatusBadRequest},
		{"not_found", &errs.NotFoundError{Entity: "equipment", ID: "x"}, http.StatusNotFound},
		{"duplicate", &errs.DuplicateAssetNumberError{AssetNumber: "TOP-0001"}, http.StatusConflict},
		{"too_large", &errs.FileTooLargeError{Size: 11 << 20, Limit: 10 << 20}, http.StatusRequestEntityTooLarge},
		{"persistence", &errs.PersistenceError{Op: "query", Err: errors.New("down")}, http.StatusServiceUnavailable},
		{"conversion", &errs.ConversionError{Step: 2, Err: errors.New("stuck")}, http.StatusConflict},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			a := NewApp(Config{Env: "test"}, nil, nil, nil, nil)
			a.R.GET("/f", func(c *gin.Context) { Fail(c, tt.err) })
			rr := httptest.NewRecorder()
			a.R.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/f", nil))
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}
