package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORSMiddlewareSetsAllowOriginForDefaultConfig(t *testing.T) {
	handler := CORSMiddleware(DefaultCORSConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/ns/service", nil)
	req.Header.Set("Origin", "http://localhost:8848")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:8848" {
		t.Errorf("expected Access-Control-Allow-Origin to echo the request origin, got %q", got)
	}
}

func TestCORSMiddlewareAnswersPreflightWithoutCallingNext(t *testing.T) {
	called := false
	handler := CORSMiddleware(DefaultCORSConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/ns/service", nil)
	req.Header.Set("Origin", "http://localhost:8848")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if called {
		t.Error("preflight request should not reach the wrapped handler")
	}
}
