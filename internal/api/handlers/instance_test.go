package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nacos-mini/nacos-go/internal/core/registry"
)

func newTestInstanceHandler(t *testing.T) (*InstanceHandler, *ServiceHandler) {
	db := newTestDB(t)
	store := registry.New(db)
	return NewInstanceHandler(store), NewServiceHandler(store)
}

func registerTestInstance(t *testing.T, h *InstanceHandler, svc string) {
	t.Helper()
	form := url.Values{
		"serviceName": {svc}, "groupName": {"DEFAULT_GROUP"},
		"ip": {"10.0.0.1"}, "port": {"8080"}, "weight": {"1"},
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/ns/instance", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Register(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func createTestService(t *testing.T, h *ServiceHandler, svc string) {
	t.Helper()
	form := url.Values{"serviceName": {svc}, "groupName": {"DEFAULT_GROUP"}}
	req := httptest.NewRequest(http.MethodPost, "/v1/ns/service", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestInstanceHandlerRegisterAndList(t *testing.T) {
	instances, services := newTestInstanceHandler(t)
	createTestService(t, services, "demo")
	registerTestInstance(t, instances, "demo")

	req := httptest.NewRequest(http.MethodGet, "/v1/ns/instance/list?serviceName=demo&groupName=DEFAULT_GROUP", nil)
	rec := httptest.NewRecorder()
	instances.List(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ip":"10.0.0.1"`)
}

func TestInstanceHandlerBeatAlwaysReturnsCode10200(t *testing.T) {
	instances, _ := newTestInstanceHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/v1/ns/instance/beat?serviceName=ghost&groupName=DEFAULT_GROUP&ip=1.2.3.4&port=80", nil)
	rec := httptest.NewRecorder()
	instances.Beat(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":10200`)
}

func TestInstanceHandlerPatchUpdatesWeight(t *testing.T) {
	instances, services := newTestInstanceHandler(t)
	createTestService(t, services, "demo2")
	registerTestInstance(t, instances, "demo2")

	form := url.Values{
		"serviceName": {"demo2"}, "groupName": {"DEFAULT_GROUP"},
		"ip": {"10.0.0.1"}, "port": {"8080"}, "weight": {"5.5"},
	}
	req := httptest.NewRequest(http.MethodPut, "/v1/ns/instance", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	instances.Patch(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestInstanceHandlerStatusReportListsIPHealth(t *testing.T) {
	instances, services := newTestInstanceHandler(t)
	createTestService(t, services, "demo3")
	registerTestInstance(t, instances, "demo3")

	req := httptest.NewRequest(http.MethodGet, "/v1/ns/instance/statuses?serviceName=demo3&groupName=DEFAULT_GROUP", nil)
	rec := httptest.NewRecorder()
	instances.StatusReport(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "10.0.0.1:8080_true")
}

func TestInstanceHandlerListRecordsNamingSubscriber(t *testing.T) {
	instances, services := newTestInstanceHandler(t)
	createTestService(t, services, "demo4")
	registerTestInstance(t, instances, "demo4")

	req := httptest.NewRequest(http.MethodGet, "/v1/ns/instance/list?serviceName=demo4&groupName=DEFAULT_GROUP", nil)
	req.Header.Set("User-Agent", "Nacos-Java-Client")
	rec := httptest.NewRecorder()
	instances.List(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestInstanceHandlerBatchUpdateMetadataRejectsMissingServiceName(t *testing.T) {
	instances, _ := newTestInstanceHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/v1/ns/instance/metadata/batch",
		strings.NewReader(`{"instances":["10.0.0.1#8080#DEFAULT#DEFAULT_GROUP"],"metadata":{"k":"v"}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	instances.BatchUpdateMetadata(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInstanceHandlerBatchDeleteMetadataReturnsDeletedKey(t *testing.T) {
	instances, services := newTestInstanceHandler(t)
	createTestService(t, services, "demo5")
	registerTestInstance(t, instances, "demo5")

	req := httptest.NewRequest(http.MethodDelete, "/v1/ns/instance/metadata/batch",
		strings.NewReader(`{"instances":["10.0.0.1#8080#DEFAULT#DEFAULT_GROUP"],"keys":["k"],"serviceName":"demo5","groupName":"DEFAULT_GROUP"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	instances.BatchDeleteMetadata(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"deleted"`)
	require.NotContains(t, rec.Body.String(), `"updated"`)
}

func TestInstanceHandlerDeregisterMissingIsOK(t *testing.T) {
	instances, _ := newTestInstanceHandler(t)

	req := httptest.NewRequest(http.MethodDelete, "/v1/ns/instance?serviceName=none&groupName=DEFAULT_GROUP&ip=9.9.9.9&port=1", nil)
	rec := httptest.NewRecorder()
	instances.Deregister(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
