package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cedinhealth/clinic-automation/internal/messaging"
	"github.com/cedinhealth/clinic-automation/internal/observability/metrics"
	"github.com/cedinhealth/clinic-automation/pkg/logging"
)

const maxWebhookBody = 1 << 20

type inboundHandler interface {
	HandleInboundEvent(ctx context.Context, ev messaging.InboundEvent) (bool, error)
}

type statusHandler interface {
	Handle(ctx context.Context, externalID, status string) error
}

// WebhookHandler receives the template gateway's callbacks: inbound
// messages and delivery receipts.
type WebhookHandler struct {
	automation  inboundHandler
	statuses    statusHandler
	verifyToken string
	metrics     *metrics.AutomationMetrics
	logger      *logging.Logger
}

type WebhookConfig struct {
	Automation  inboundHandler
	Statuses    statusHandler
	VerifyToken string
	Metrics     *metrics.AutomationMetrics
	Logger      *logging.Logger
}

func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &WebhookHandler{
		automation:  cfg.Automation,
		statuses:    cfg.Statuses,
		verifyToken: cfg.VerifyToken,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// Verify answers the provider's subscription handshake: echo the
// challenge when the verify token matches.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != h.verifyToken {
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(q.Get("hub.challenge")))
}

// webhookPayload is the subset of the provider's event envelope the
// engine consumes.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []webhookMessage `json:"messages"`
				Statuses []webhookStatus  `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Button *struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button"`
	Image    *webhookMedia `json:"image"`
	Document *webhookMedia `json:"document"`
}

type webhookMedia struct {
	Link    string `json:"link"`
	Caption string `json:"caption"`
}

type webhookStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// HandleEvents processes one webhook delivery. Individual event failures
// are logged but the delivery is acknowledged anyway; the provider
// retries whole deliveries, which would double-process the events that
// did succeed.
func (h *WebhookHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				ev := toInboundEvent(m)
				if _, err := h.automation.HandleInboundEvent(r.Context(), ev); err != nil {
					h.logger.Error("inbound event handling failed",
						"external_id", ev.ExternalID, "error", err)
				}
			}
			for _, s := range change.Value.Statuses {
				if err := h.statuses.Handle(r.Context(), s.ID, s.Status); err != nil {
					h.logger.Error("status update handling failed",
						"external_id", s.ID, "status", s.Status, "error", err)
				}
			}
		}
	}

	h.metrics.ObserveWebhookLatency(time.Since(start).Seconds())
	w.WriteHeader(http.StatusOK)
}

func toInboundEvent(m webhookMessage) messaging.InboundEvent {
	ev := messaging.InboundEvent{
		SenderID:   m.From,
		ExternalID: m.ID,
		ReceivedAt: time.Now().UTC(),
	}
	if ts, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil && ts > 0 {
		ev.ReceivedAt = time.Unix(ts, 0).UTC()
	}
	if m.Text != nil {
		ev.Text = m.Text.Body
	}
	if m.Button != nil {
		ev.Button = m.Button.Payload
		if ev.Text == "" {
			ev.Text = m.Button.Text
		}
	}
	switch {
	case m.Image != nil:
		ev.MediaURL = m.Image.Link
		ev.MediaType = messaging.TypeImage
		if ev.Text == "" {
			ev.Text = m.Image.Caption
		}
	case m.Document != nil:
		ev.MediaURL = m.Document.Link
		ev.MediaType = messaging.TypeDocument
		if ev.Text == "" {
			ev.Text = m.Document.Caption
		}
	}
	return ev
}
