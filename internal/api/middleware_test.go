package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func authedHandler(t *testing.T, apiKey string) (http.Handler, *bool) {
	t.Helper()
	reached := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	return APIKeyAuth(apiKey)(inner), &reached
}

func TestAPIKeyAuthMissingKey(t *testing.T) {
	h, reached := authedHandler(t, "secret")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/jobs/x", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *reached)
	assert.Contains(t, rec.Body.String(), "Missing API key")
}

func TestAPIKeyAuthWrongKey(t *testing.T) {
	h, reached := authedHandler(t, "secret")

	req := httptest.NewRequest("GET", "/v1/jobs/x", nil)
	req.Header.Set("X-API-Key", "not-the-secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, *reached)
}

func TestAPIKeyAuthHeaderKey(t *testing.T) {
	h, reached := authedHandler(t, "secret")

	req := httptest.NewRequest("GET", "/v1/jobs/x", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *reached)
}

func TestAPIKeyAuthBearerKey(t *testing.T) {
	h, reached := authedHandler(t, "secret")

	req := httptest.NewRequest("GET", "/v1/jobs/x", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *reached)
}
