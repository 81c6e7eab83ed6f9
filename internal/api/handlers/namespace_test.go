package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nacos-mini/nacos-go/internal/core/tenant"
)

func newTestNamespaceHandler(t *testing.T) *NamespaceHandler {
	db := newTestDB(t)
	return NewNamespaceHandler(tenant.New(db))
}

func TestNamespaceHandlerListIncludesPublic(t *testing.T) {
	h := newTestNamespaceHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/console/namespaces", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "public")
}

func TestNamespaceHandlerCreateThenGet(t *testing.T) {
	h := newTestNamespaceHandler(t)

	form := url.Values{"customNamespaceId": {"team-a"}, "namespaceName": {"Team A"}}
	req := httptest.NewRequest(http.MethodPost, "/v1/console/namespaces", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/console/namespaces?namespaceId=team-a", nil)
	rec = httptest.NewRecorder()
	h.List(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Team A")
}

func TestNamespaceHandlerCreateReturnsBareBoolean(t *testing.T) {
	h := newTestNamespaceHandler(t)

	form := url.Values{"customNamespaceId": {"team-b"}, "namespaceName": {"Team B"}}
	req := httptest.NewRequest(http.MethodPost, "/v1/console/namespaces", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "true\n", rec.Body.String())
}

func TestNamespaceHandlerUpdateUsesWireFieldNames(t *testing.T) {
	h := newTestNamespaceHandler(t)

	form := url.Values{"customNamespaceId": {"team-c"}, "namespaceName": {"Team C"}}
	req := httptest.NewRequest(http.MethodPost, "/v1/console/namespaces", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	form = url.Values{"namespace": {"team-c"}, "namespaceShowName": {"Team C Renamed"}}
	req = httptest.NewRequest(http.MethodPut, "/v1/console/namespaces", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.Update(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "true\n", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/v1/console/namespaces?namespaceId=team-c", nil)
	rec = httptest.NewRecorder()
	h.List(rec, req)
	require.Contains(t, rec.Body.String(), "Team C Renamed")
}

func TestNamespaceHandlerDeleteReservedIsRejected(t *testing.T) {
	h := newTestNamespaceHandler(t)

	req := httptest.NewRequest(http.MethodDelete, "/v1/console/namespaces?namespaceId=public", nil)
	rec := httptest.NewRecorder()
	h.Delete(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
