package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cedinhealth/clinic-automation/internal/http/handlers"
)

func TestAdminRoutesRequireToken(t *testing.T) {
	r := New(&Config{
		Health:     handlers.NewHealthHandler(nil, nil),
		Session:    handlers.NewSessionHandler(nil, nil),
		AdminToken: "secreto",
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/admin/session/status", nil)
	resp, err = http.DefaultClient.Do(req)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	req.Header.Set("Authorization", "Bearer secreto")
	resp, err = http.DefaultClient.Do(req)
	assert.NoError(t, err)
	// Authorized, but no session client is configured.
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestAdminRoutesAbsentWithoutToken(t *testing.T) {
	r := New(&Config{Health: handlers.NewHealthHandler(nil, nil)})
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/admin/session/status")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
