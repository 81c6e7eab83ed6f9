package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nacos-mini/nacos-go/internal/core/authtoken"
)

func newTestAuthHandler(t *testing.T) *AuthHandler {
	db := newTestDB(t)
	return NewAuthHandler(authtoken.New(db, time.Hour))
}

func TestAuthHandlerLoginIssuesToken(t *testing.T) {
	h := newTestAuthHandler(t)

	form := url.Values{"username": {"admin"}}
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/users/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "accessToken")
}

func TestAuthHandlerLoginRejectsEmptyUsername(t *testing.T) {
	h := newTestAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/users/login", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
