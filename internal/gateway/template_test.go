package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *TemplateClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTemplateClient(TemplateClientConfig{
		BaseURL: srv.URL,
		Token:   "test-token",
		PhoneID: "12345",
	})
}

func TestSendTemplate(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "wamid.ABC123"}},
		})
	})

	result, err := client.SendTemplate(context.Background(), TemplateRequest{
		To:       "+5491155550101",
		Template: "recordatorio_turno",
		Params:   []string{"Ana Suárez", "jueves 11 de enero", "10:00", "Dra. García", "Cedin Centro"},
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.ABC123", result.MessageID)

	assert.Equal(t, "template", got["type"])
	tmpl := got["template"].(map[string]any)
	assert.Equal(t, "recordatorio_turno", tmpl["name"])
	components := tmpl["components"].([]any)
	require.Len(t, components, 1)
	body := components[0].(map[string]any)
	assert.Equal(t, "body", body["type"])
	assert.Len(t, body["parameters"].([]any), 5)
}

func TestSendTemplateWithMediaHeader(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "wamid.XYZ"}},
		})
	})

	_, err := client.SendTemplate(context.Background(), TemplateRequest{
		To:       "+5491155550101",
		Template: "recordatorio_turno",
		MediaURL: "https://cedin.example/mapa.png",
	})
	require.NoError(t, err)

	components := got["template"].(map[string]any)["components"].([]any)
	require.Len(t, components, 1)
	header := components[0].(map[string]any)
	assert.Equal(t, "header", header["type"])
}

func TestSendTemplateAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "invalid token"}})
	})

	_, err := client.SendTemplate(context.Background(), TemplateRequest{
		To:       "+5491155550101",
		Template: "recordatorio_turno",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestSendTemplateValidation(t *testing.T) {
	client := NewTemplateClient(TemplateClientConfig{BaseURL: "http://unused", Token: "t", PhoneID: "p"})

	_, err := client.SendTemplate(context.Background(), TemplateRequest{Template: "x"})
	assert.EqualError(t, err, "gateway: to required")

	_, err = client.SendTemplate(context.Background(), TemplateRequest{To: "+549"})
	assert.EqualError(t, err, "gateway: template required")
}

func TestSendText(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "wamid.TXT"}},
		})
	})

	result, err := client.SendText(context.Background(), "+5491155550101", "¡Gracias por tu respuesta!")
	require.NoError(t, err)
	assert.Equal(t, "wamid.TXT", result.MessageID)
	assert.Equal(t, "text", got["type"])
}

func TestHealth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/12345", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	status := client.Health(context.Background())
	assert.True(t, status.Connected)

	down := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	status = down.Health(context.Background())
	assert.False(t, status.Connected)
	assert.Equal(t, "status 503", status.Err)
}
