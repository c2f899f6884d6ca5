package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"mpesa-payment-gateway/pkg/logger"
)

func protected(m *AuthMiddleware) (http.HandlerFunc, *bool) {
	called := false
	next := func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}
	return m.Authenticate(next), &called
}

func TestAuthenticateValidKey(t *testing.T) {
	m := NewAuthMiddleware("secret-key", logger.New("ERROR"))
	handler, called := protected(m)

	req := httptest.NewRequest(http.MethodGet, "/payment-status", nil)
	req.Header.Set("X-API-Key", "secret-key")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *called)
}

func TestAuthenticateMissingKey(t *testing.T) {
	m := NewAuthMiddleware("secret-key", logger.New("ERROR"))
	handler, called := protected(m)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/payment-status", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *called)
}

func TestAuthenticateInvalidKey(t *testing.T) {
	m := NewAuthMiddleware("secret-key", logger.New("ERROR"))
	handler, called := protected(m)

	req := httptest.NewRequest(http.MethodGet, "/payment-status", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *called)
}

func TestAuthenticateDisabledWithoutKey(t *testing.T) {
	m := NewAuthMiddleware("", logger.New("ERROR"))
	handler, called := protected(m)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/payment-status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *called)
}
