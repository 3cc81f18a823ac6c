package handlers

import (
	"context"
	"net/http"

	"github.com/cedinhealth/clinic-automation/internal/gateway/session"
	"github.com/cedinhealth/clinic-automation/pkg/logging"
)

type sessionClient interface {
	Status() session.Status
	Logout(ctx context.Context) error
}

// SessionHandler exposes the session gateway's pairing state so an
// operator can scan the QR code and monitor connectivity.
type SessionHandler struct {
	client sessionClient
	logger *logging.Logger
}

func NewSessionHandler(client sessionClient, logger *logging.Logger) *SessionHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionHandler{client: client, logger: logger}
}

// Status reports the automaton state, the paired number and, while
// pairing, the QR artifact.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		http.Error(w, "session gateway not configured", http.StatusServiceUnavailable)
		return
	}
	st := h.client.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"state":     string(st.State),
		"connected": st.Connected,
		"number":    st.Number,
		"qr":        st.QR,
	})
}

// Logout tears the session down and discards its credentials; the next
// connection will require a fresh pairing.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		http.Error(w, "session gateway not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.client.Logout(r.Context()); err != nil {
		h.logger.Error("session logout failed", "error", err)
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}
	h.logger.Info("session logged out by operator")
	w.WriteHeader(http.StatusNoContent)
}
