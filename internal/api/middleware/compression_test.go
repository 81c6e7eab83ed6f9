package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCompressionMiddlewareGzipsWhenAccepted(t *testing.T) {
	handler := CompressionMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count":1,"doms":["orders"]}`))
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/ns/service/list", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected Content-Encoding: gzip, got %q", rec.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("response body is not valid gzip: %v", err)
	}
	defer zr.Close()
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("failed to decompress body: %v", err)
	}
	if string(body) != `{"count":1,"doms":["orders"]}` {
		t.Errorf("unexpected decompressed body: %s", body)
	}
}

func TestCompressionMiddlewarePassesThroughWithoutAcceptEncoding(t *testing.T) {
	handler := CompressionMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/ns/service/list", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") == "gzip" {
		t.Error("should not gzip when client did not send Accept-Encoding: gzip")
	}
	if rec.Body.String() != "plain" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}
