package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/cedinhealth/clinic-automation/internal/patient"
	"github.com/cedinhealth/clinic-automation/pkg/logging"
)

// InboundEvent is an inbound message normalized across transports (the
// session gateway stream and the webhook boundary).
type InboundEvent struct {
	SenderID   string
	ExternalID string
	Text       string
	Button     string
	MediaURL   string
	MediaType  MessageType
	FromSelf   bool
	ReceivedAt time.Time
}

type patientResolver interface {
	FindByPhoneSuffix(ctx context.Context, senderID string) (*patient.Patient, error)
	CreateLead(ctx context.Context, senderID string) (*patient.Patient, error)
}

// InboundLogger appends inbound messages to the conversation log,
// resolving the sender to a patient (or auto-creating a lead).
type InboundLogger struct {
	patients patientResolver
	store    *Store
	logger   *logging.Logger
}

// NewInboundLogger creates an inbound logger.
func NewInboundLogger(patients patientResolver, store *Store, logger *logging.Logger) *InboundLogger {
	if logger == nil {
		logger = logging.Default()
	}
	return &InboundLogger{patients: patients, store: store, logger: logger}
}

// Log records one inbound event. Self-originated and unresolvable
// events are ignored; duplicates (same gateway id) are dropped.
func (l *InboundLogger) Log(ctx context.Context, ev InboundEvent) error {
	if ev.FromSelf {
		return nil
	}
	if patient.NormalizeDigits(ev.SenderID) == "" {
		l.logger.Debug("ignoring inbound event without a phone sender", "sender", ev.SenderID)
		return nil
	}

	if dup, err := l.store.HasMessageWithExternalID(ctx, ev.ExternalID); err != nil {
		return err
	} else if dup {
		return nil
	}

	p, err := l.patients.FindByPhoneSuffix(ctx, ev.SenderID)
	if err != nil {
		return fmt.Errorf("messaging: resolve inbound sender: %w", err)
	}
	if p == nil {
		p, err = l.patients.CreateLead(ctx, ev.SenderID)
		if err != nil {
			return fmt.Errorf("messaging: create lead for inbound sender: %w", err)
		}
		l.logger.Info("lead created for unknown sender", "patient_id", p.ID)
	}

	conv, err := l.store.FindOrCreateConversation(ctx, p.ID, ChannelWhatsApp)
	if err != nil {
		return err
	}

	content := ev.Text
	if content == "" {
		content = ev.Button
	}
	msgType := ev.MediaType
	if msgType == "" {
		msgType = TypeText
	}
	msg := &Message{
		ConversationID: conv.ID,
		Sender:         SenderPatient,
		Content:        content,
		Type:           msgType,
		Status:         "received",
		ExternalID:     ev.ExternalID,
		MediaURL:       ev.MediaURL,
		SentAt:         ev.ReceivedAt,
	}
	return l.store.AppendMessage(ctx, msg)
}
