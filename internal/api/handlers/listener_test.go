package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nacos-mini/nacos-go/internal/core/configstore"
	"github.com/nacos-mini/nacos-go/internal/core/notifier"
)

func newTestListenerHandler(t *testing.T) *ListenerHandler {
	db := newTestDB(t)
	configs := configstore.New(db, 16)
	return NewListenerHandler(notifier.New(db, configs))
}

func TestListenerHandlerPollDetectsStaleMD5(t *testing.T) {
	h := newTestListenerHandler(t)

	form := url.Values{"Listening-Configs": {"app.properties\x02DEFAULT_GROUP\x02stale-md5\x01"}}
	req := httptest.NewRequest(http.MethodPost, "/v1/cs/configs/listener", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Long-Pulling-Timeout", "200")
	rec := httptest.NewRecorder()
	h.Poll(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "app.properties")
}

func TestListenerHandlerPollEmptyReturnsEmpty(t *testing.T) {
	h := newTestListenerHandler(t)

	form := url.Values{"Listening-Configs": {""}}
	req := httptest.NewRequest(http.MethodPost, "/v1/cs/configs/listener", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Poll(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "", rec.Body.String())
}

func TestListenerHandlerPollRejectsNonPositiveTimeout(t *testing.T) {
	h := newTestListenerHandler(t)

	form := url.Values{"Listening-Configs": {"app.properties\x02DEFAULT_GROUP\x02stale-md5\x01"}}
	req := httptest.NewRequest(http.MethodPost, "/v1/cs/configs/listener", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Long-Pulling-Timeout", "0")
	rec := httptest.NewRecorder()
	h.Poll(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListenerHandlerListByDataIDEmpty(t *testing.T) {
	h := newTestListenerHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v3/console/cs/config/listener?dataId=x&group=DEFAULT_GROUP", nil)
	rec := httptest.NewRecorder()
	h.ListByDataID(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "listenersStatus")
}
