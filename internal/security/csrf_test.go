package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSRFMiddlewareBlocksMissingToken(t *testing.T) {
	handler := CSRF{Cookie: "qd_csrf"}.Middleware(okHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/quotes/1/send", nil))
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Contains(t, rr.Body.String(), "CSRF_REQUIRED")
}

func TestCSRFMiddlewareAllowsValidToken(t *testing.T) {
	handler := CSRF{Cookie: "qd_csrf"}.Middleware(okHandler())
	token, err := NewCSRFToken()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/admin/quotes/1/send", nil)
	req.Header.Set("X-CSRF-Token", token)
	req.AddCookie(&http.Cookie{Name: "qd_csrf", Value: token})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/admin/quotes/1/send", nil)
	req.Header.Set("X-CSRF-Token", token+"x")
	req.AddCookie(&http.Cookie{Name: "qd_csrf", Value: token})
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Contains(t, rr.Body.String(), "CSRF_INVALID")
}

func TestCSRFMiddlewareSkipsBearerAndSafeMethods(t *testing.T) {
	handler := CSRF{}.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/quotes/1/send", nil)
	req.Header.Set("Authorization", "Bearer abc.def")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/quotes", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}
