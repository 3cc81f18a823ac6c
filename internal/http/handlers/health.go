package handlers

import (
	"context"
	"net/http"

	"github.com/cedinhealth/clinic-automation/internal/gateway"
)

type templateHealth interface {
	Health(ctx context.Context) gateway.HealthStatus
}

type sessionHealth interface {
	Connected() bool
}

// HealthHandler reports process liveness plus gateway connectivity.
type HealthHandler struct {
	template templateHealth
	session  sessionHealth
}

func NewHealthHandler(template templateHealth, session sessionHealth) *HealthHandler {
	return &HealthHandler{template: template, session: session}
}

// Check always answers 200 while the process is up; gateway states are
// informational.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if h.template != nil {
		st := h.template.Health(r.Context())
		resp["template_gateway"] = map[string]any{"connected": st.Connected, "error": st.Err}
	}
	if h.session != nil {
		resp["session_gateway"] = map[string]any{"connected": h.session.Connected()}
	}
	writeJSON(w, http.StatusOK, resp)
}
