package automation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cedinhealth/clinic-automation/internal/appointment"
	"github.com/cedinhealth/clinic-automation/internal/clock"
	"github.com/cedinhealth/clinic-automation/internal/messaging"
	"github.com/cedinhealth/clinic-automation/internal/observability/metrics"
	"github.com/cedinhealth/clinic-automation/internal/patient"
	"github.com/cedinhealth/clinic-automation/internal/reminder"
	"github.com/cedinhealth/clinic-automation/pkg/logging"
)

// Quick-reply tokens carried by the reminder template's buttons.
const (
	TokenConfirmYes        = "confirm_yes"
	TokenConfirmCancel     = "confirm_cancel"
	TokenConfirmReschedule = "confirm_reschedule"
)

// Patient-facing copy, Spanish.
const (
	ackConfirmed     = "¡Gracias! Tu turno quedó confirmado. Te esperamos."
	ackCancelled     = "Tu turno fue cancelado. Si querés reprogramarlo, escribinos por acá."
	ackReschedule    = "¡Perfecto! En breve alguien del equipo se va a contactar para reprogramar tu turno."
	ackNoAppointment = "No encontramos un turno próximo a tu nombre. Escribinos y te ayudamos."
)

type surveyClaimer interface {
	HandleInbound(ctx context.Context, senderID, text string) (bool, error)
}

type patientResolver interface {
	FindByPhoneSuffix(ctx context.Context, senderID string) (*patient.Patient, error)
}

type appointmentStore interface {
	NearestFuture(ctx context.Context, patientID uuid.UUID, after time.Time) (*appointment.Appointment, error)
	SetStatus(ctx context.Context, id uuid.UUID, status appointment.Status) error
}

type reminderWriter interface {
	SetStatusByAppointment(ctx context.Context, appointmentID uuid.UUID, status reminder.Status) error
}

type sender interface {
	Send(ctx context.Context, req messaging.SendRequest) (*messaging.Message, error)
}

type inboundLogger interface {
	Log(ctx context.Context, ev messaging.InboundEvent) error
}

type conversationStore interface {
	FindOrCreateConversation(ctx context.Context, patientID uuid.UUID, channel messaging.Channel) (*messaging.Conversation, error)
	IncrementUnread(ctx context.Context, conversationID uuid.UUID) error
}

// Handler interprets inbound messages: the survey engine gets first
// refusal, then the quick-reply tokens, then plain conversation logging.
type Handler struct {
	surveys       surveyClaimer
	patients      patientResolver
	appointments  appointmentStore
	reminders     reminderWriter
	router        sender
	inbound       inboundLogger
	conversations conversationStore
	clock         clock.Clock
	metrics       *metrics.AutomationMetrics
	logger        *logging.Logger
}

// NewHandler creates an inbound automation handler.
func NewHandler(
	surveys surveyClaimer,
	patients patientResolver,
	appts appointmentStore,
	reminders reminderWriter,
	router sender,
	inbound inboundLogger,
	conversations conversationStore,
	clk clock.Clock,
	m *metrics.AutomationMetrics,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		surveys:       surveys,
		patients:      patients,
		appointments:  appts,
		reminders:     reminders,
		router:        router,
		inbound:       inbound,
		conversations: conversations,
		clock:         clk,
		metrics:       m,
		logger:        logger,
	}
}

// HandleInboundEvent runs one inbound message through the claim chain
// and reports whether an automation claimed it. Unclaimed messages are
// appended to the conversation log as ordinary chatter.
func (h *Handler) HandleInboundEvent(ctx context.Context, ev messaging.InboundEvent) (bool, error) {
	if ev.FromSelf {
		return false, nil
	}
	payload := ev.Button
	if payload == "" {
		payload = ev.Text
	}

	claimed, err := h.surveys.HandleInbound(ctx, ev.SenderID, payload)
	if err != nil {
		return false, err
	}
	if claimed {
		h.metrics.ObserveInboundClaim("survey")
		return true, nil
	}

	switch payload {
	case TokenConfirmYes, TokenConfirmCancel, TokenConfirmReschedule:
		h.metrics.ObserveInboundClaim("quick_reply")
		return true, h.handleQuickReply(ctx, ev, payload)
	}

	h.metrics.ObserveInboundClaim("conversation")
	return false, h.inbound.Log(ctx, ev)
}

func (h *Handler) handleQuickReply(ctx context.Context, ev messaging.InboundEvent, token string) error {
	// The button press itself goes into the conversation log first, so
	// staff can see what the patient answered.
	if err := h.inbound.Log(ctx, ev); err != nil {
		h.logger.Error("quick-reply audit log failed", "sender", ev.SenderID, "error", err)
	}

	p, err := h.patients.FindByPhoneSuffix(ctx, ev.SenderID)
	if err != nil {
		return err
	}
	if p == nil {
		h.logger.Warn("quick reply from unknown sender", "sender", ev.SenderID, "token", token)
		return nil
	}

	if token == TokenConfirmReschedule {
		if _, err := h.router.Send(ctx, messaging.SendRequest{
			PatientID: p.ID, To: p.Phone, Text: ackReschedule,
		}); err != nil {
			return err
		}
		// Flag the conversation so staff picks up the reschedule.
		conv, err := h.conversations.FindOrCreateConversation(ctx, p.ID, messaging.ChannelWhatsApp)
		if err != nil {
			return err
		}
		return h.conversations.IncrementUnread(ctx, conv.ID)
	}

	appt, err := h.appointments.NearestFuture(ctx, p.ID, h.clock.Now())
	if err != nil {
		return err
	}
	if appt == nil {
		h.logger.Warn("quick reply with no upcoming appointment", "patient_id", p.ID, "token", token)
		_, err := h.router.Send(ctx, messaging.SendRequest{
			PatientID: p.ID, To: p.Phone, Text: ackNoAppointment,
		})
		return err
	}

	newStatus := appointment.StatusConfirmed
	recordStatus := reminder.StatusConfirmed
	ack := ackConfirmed
	if token == TokenConfirmCancel {
		newStatus = appointment.StatusCancelled
		recordStatus = reminder.StatusCancelled
		ack = ackCancelled
	}

	if err := h.appointments.SetStatus(ctx, appt.ID, newStatus); err != nil {
		return err
	}
	if err := h.reminders.SetStatusByAppointment(ctx, appt.ID, recordStatus); err != nil {
		h.logger.Error("reminder record update failed", "appointment_id", appt.ID, "error", err)
	}
	h.logger.Info("appointment updated from quick reply",
		"appointment_id", appt.ID, "patient_id", p.ID, "status", newStatus)

	_, err = h.router.Send(ctx, messaging.SendRequest{
		PatientID: p.ID, To: p.Phone, Text: ack,
	})
	return err
}

// HandleStatusUpdate applies a delivery receipt to both the conversation
// log and the reminder audit trail.
type statusSink interface {
	HandleStatusUpdate(ctx context.Context, externalID, status string) error
}

type reminderReceipts interface {
	UpdateByExternalID(ctx context.Context, externalMessageID string, status reminder.Status) (bool, error)
}

// StatusHandler fans a gateway delivery-status callback out to the
// conversation log and the reminder records.
type StatusHandler struct {
	messages  statusSink
	reminders reminderReceipts
	logger    *logging.Logger
}

// NewStatusHandler creates a delivery-status handler.
func NewStatusHandler(messages statusSink, reminders reminderReceipts, logger *logging.Logger) *StatusHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatusHandler{messages: messages, reminders: reminders, logger: logger}
}

// Handle applies one delivery-status callback.
func (s *StatusHandler) Handle(ctx context.Context, externalID, status string) error {
	if err := s.messages.HandleStatusUpdate(ctx, externalID, status); err != nil {
		return err
	}
	matched, err := s.reminders.UpdateByExternalID(ctx, externalID, reminder.Status(status))
	if err != nil {
		return err
	}
	if matched {
		s.logger.Debug("reminder delivery status updated", "external_id", externalID, "status", status)
	}
	return nil
}
