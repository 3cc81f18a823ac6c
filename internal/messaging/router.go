package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cedinhealth/clinic-automation/internal/gateway"
	"github.com/cedinhealth/clinic-automation/internal/observability/metrics"
	"github.com/cedinhealth/clinic-automation/pkg/logging"
)

// TemplateGateway is the stateless channel: pre-approved templates plus
// free-form text inside an open conversation window.
type TemplateGateway interface {
	gateway.TemplateSender
	gateway.TextSender
}

// SessionGateway is the persistent channel.
type SessionGateway interface {
	SendText(ctx context.Context, to, body string) (*gateway.SendResult, error)
	SendMedia(ctx context.Context, to string, kind gateway.MediaKind, url, caption string) (*gateway.SendResult, error)
	Connected() bool
}

// MediaAttachment is a media payload for session sends.
type MediaAttachment struct {
	Kind    gateway.MediaKind
	URL     string
	Caption string
}

// SendRequest describes one outbound message plus the context the
// routing policy needs.
type SendRequest struct {
	PatientID uuid.UUID
	To        string

	// Exactly one of Template, Text or Media carries the content.
	Template *gateway.TemplateRequest
	Text     string
	Media    *MediaAttachment

	// StaffID is set when a staff member initiates the send from the
	// conversation view; automated sends leave it nil.
	StaffID *uuid.UUID
	// Override forces a specific provider regardless of policy.
	Override gateway.Provider
}

// SelectProvider is the routing policy. An explicit override always
// wins; template content is restricted to the template channel; staff
// sends prefer the session gateway while it is connected; automated
// sends always use the template gateway.
func SelectProvider(req SendRequest, sessionConnected bool) gateway.Provider {
	if req.Override != "" {
		return req.Override
	}
	if req.Template != nil {
		return gateway.ProviderTemplate
	}
	if req.StaffID != nil && sessionConnected {
		return gateway.ProviderSession
	}
	return gateway.ProviderTemplate
}

// Router dispatches sends to the selected gateway and keeps the
// conversation log.
type Router struct {
	template TemplateGateway
	session  SessionGateway
	store    *Store
	metrics  *metrics.AutomationMetrics
	logger   *logging.Logger
}

// NewRouter creates a messaging router. The session gateway may be nil
// when no session bridge is configured.
func NewRouter(template TemplateGateway, session SessionGateway, store *Store, m *metrics.AutomationMetrics, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.Default()
	}
	return &Router{template: template, session: session, store: store, metrics: m, logger: logger}
}

// Send routes one outbound message and appends it to the conversation
// log. The returned message carries the gateway id on success.
func (r *Router) Send(ctx context.Context, req SendRequest) (*Message, error) {
	if req.To == "" {
		return nil, errors.New("messaging: to required")
	}
	if req.PatientID == uuid.Nil {
		return nil, errors.New("messaging: patient id required")
	}

	provider := SelectProvider(req, r.session != nil && r.session.Connected())

	result, sendErr := r.dispatch(ctx, provider, req)
	if r.metrics != nil {
		r.metrics.ObserveGatewaySend(string(provider), sendErr == nil)
	}

	conv, err := r.store.FindOrCreateConversation(ctx, req.PatientID, ChannelWhatsApp)
	if err != nil {
		if sendErr != nil {
			return nil, errors.Join(sendErr, err)
		}
		return nil, err
	}

	msg := &Message{
		ConversationID: conv.ID,
		Sender:         SenderClinic,
		Content:        describeContent(req),
		Type:           contentType(req),
		Provider:       provider,
		Status:         "sent",
	}
	if req.Media != nil {
		msg.MediaURL = req.Media.URL
	}
	if sendErr != nil {
		msg.Status = "failed"
	} else if result != nil {
		msg.ExternalID = result.MessageID
	}

	if err := r.store.AppendMessage(ctx, msg); err != nil {
		r.logger.Error("conversation log append failed", "patient_id", req.PatientID, "error", err)
		if sendErr == nil {
			return msg, err
		}
	}

	if sendErr != nil {
		return nil, sendErr
	}
	return msg, nil
}

func (r *Router) dispatch(ctx context.Context, provider gateway.Provider, req SendRequest) (*gateway.SendResult, error) {
	switch provider {
	case gateway.ProviderTemplate:
		if req.Template != nil {
			return r.template.SendTemplate(ctx, *req.Template)
		}
		if req.Media != nil {
			return nil, errors.New("messaging: media sends require the session gateway")
		}
		return r.template.SendText(ctx, req.To, req.Text)
	case gateway.ProviderSession:
		if r.session == nil {
			return nil, errors.New("messaging: session gateway not configured")
		}
		if req.Media != nil {
			return r.session.SendMedia(ctx, req.To, req.Media.Kind, req.Media.URL, req.Media.Caption)
		}
		return r.session.SendText(ctx, req.To, req.Text)
	default:
		return nil, fmt.Errorf("messaging: unknown provider %q", provider)
	}
}

// HandleStatusUpdate applies a delivery-status callback to the logged
// message identified by its gateway id.
func (r *Router) HandleStatusUpdate(ctx context.Context, externalID, status string) error {
	matched, err := r.store.UpdateMessageStatus(ctx, externalID, status)
	if err != nil {
		return err
	}
	if !matched {
		r.logger.Debug("status update for unknown message", "external_id", externalID, "status", status)
	}
	return nil
}

func describeContent(req SendRequest) string {
	switch {
	case req.Template != nil:
		if len(req.Template.Params) == 0 {
			return "plantilla " + req.Template.Template
		}
		return "plantilla " + req.Template.Template + ": " + strings.Join(req.Template.Params, " · ")
	case req.Media != nil:
		if req.Media.Caption != "" {
			return req.Media.Caption
		}
		return req.Media.URL
	default:
		return req.Text
	}
}

func contentType(req SendRequest) MessageType {
	if req.Media == nil {
		return TypeText
	}
	switch req.Media.Kind {
	case gateway.MediaDocument:
		return TypeDocument
	default:
		return TypeImage
	}
}
