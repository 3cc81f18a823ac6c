package nps

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cedinhealth/clinic-automation/internal/appointment"
	"github.com/cedinhealth/clinic-automation/internal/clock"
	"github.com/cedinhealth/clinic-automation/internal/gateway"
	"github.com/cedinhealth/clinic-automation/internal/messaging"
	"github.com/cedinhealth/clinic-automation/internal/observability/metrics"
	"github.com/cedinhealth/clinic-automation/internal/settings"
	"github.com/cedinhealth/clinic-automation/pkg/logging"
)

// Surveys go out once the visit is comfortably over but still fresh:
// appointments that ended between 3 and 2 hours ago.
const (
	surveyDelayMin = 2 * time.Hour
	surveyDelayMax = 3 * time.Hour
)

// commentWindow is how long the comment phase stays open after a score.
const commentWindow = 4 * time.Hour

// Patient-facing copy, Spanish.
const (
	commentPrompt = "¡Gracias por tu respuesta! ¿Querés contarnos un poco más sobre tu experiencia?"
	thankYou      = "¡Muchas gracias por tu tiempo! Tu opinión nos ayuda a mejorar."
)

type settingsReader interface {
	AutomationEnabled(ctx context.Context) (bool, error)
	CampaignEnabled(ctx context.Context, key string) (bool, error)
}

type candidateLister interface {
	ListSurveyCandidates(ctx context.Context, from, to time.Time) ([]appointment.Candidate, error)
}

type responseStore interface {
	Create(ctx context.Context, r *Response) error
	FindActiveByPhone(ctx context.Context, senderID string) (*Response, error)
	SetScore(ctx context.Context, id uuid.UUID, score int, receivedAt, expiresAt time.Time) error
	SetComment(ctx context.Context, id uuid.UUID, comment string, receivedAt time.Time) error
}

type sender interface {
	Send(ctx context.Context, req messaging.SendRequest) (*messaging.Message, error)
}

// Engine drives the two-phase post-visit survey: a templated 3-option
// prompt, then a free-form comment follow-up.
type Engine struct {
	settings     settingsReader
	appointments candidateLister
	responses    responseStore
	router       sender
	clock        clock.Clock
	metrics      *metrics.AutomationMetrics
	logger       *logging.Logger

	templateName string
}

// NewEngine creates a survey engine.
func NewEngine(
	st settingsReader,
	appts candidateLister,
	responses responseStore,
	router sender,
	clk clock.Clock,
	m *metrics.AutomationMetrics,
	logger *logging.Logger,
	templateName string,
) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		settings:     st,
		appointments: appts,
		responses:    responses,
		router:       router,
		clock:        clk,
		metrics:      m,
		logger:       logger,
		templateName: templateName,
	}
}

// TriggerSurveyBatch opens a survey for every appointment that completed
// in the trailing window and sends the rating prompt.
func (e *Engine) TriggerSurveyBatch(ctx context.Context) (int, error) {
	enabled, err := e.settings.AutomationEnabled(ctx)
	if err != nil {
		return 0, err
	}
	if !enabled {
		e.logger.Debug("survey batch skipped: automation disabled")
		return 0, nil
	}
	enabled, err = e.settings.CampaignEnabled(ctx, settings.KeySurveysEnabled)
	if err != nil {
		return 0, err
	}
	if !enabled {
		e.logger.Debug("survey batch skipped: surveys disabled")
		return 0, nil
	}

	now := e.clock.Now()
	candidates, err := e.appointments.ListSurveyCandidates(ctx, now.Add(-surveyDelayMax), now.Add(-surveyDelayMin))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if strings.TrimSpace(c.PatientPhone) == "" {
			e.logger.Warn("survey skipped: patient has no phone",
				"appointment_id", c.ID, "patient_id", c.PatientID)
			continue
		}

		resp := &Response{
			AppointmentID: c.ID,
			PatientID:     c.PatientID,
			PatientPhone:  c.PatientPhone,
			SentAt:        now,
		}
		if err := e.responses.Create(ctx, resp); err != nil {
			e.logger.Error("survey response create failed", "appointment_id", c.ID, "error", err)
			continue
		}

		_, err := e.router.Send(ctx, messaging.SendRequest{
			PatientID: c.PatientID,
			To:        c.PatientPhone,
			Template: &gateway.TemplateRequest{
				To:       c.PatientPhone,
				Template: e.templateName,
				Params:   []string{strings.TrimSpace(c.PatientName)},
			},
		})
		if err != nil {
			e.logger.Error("survey prompt send failed", "appointment_id", c.ID, "error", err)
			continue
		}
		sent++
		e.metrics.ObserveSurveyPrompt()
	}

	e.logger.Info("survey batch finished", "candidates", len(candidates), "sent", sent)
	return sent, nil
}

// HandleInbound routes a patient's message through the survey state
// machine. It reports whether the survey claimed the message; unclaimed
// messages fall through to the caller's normal conversation handling.
func (e *Engine) HandleInbound(ctx context.Context, senderID, text string) (bool, error) {
	resp, err := e.responses.FindActiveByPhone(ctx, senderID)
	if err != nil {
		return false, err
	}
	if resp == nil {
		return false, nil
	}

	now := e.clock.Now()
	switch resp.Status {
	case StatusPendingScore:
		score := ParseScore(text)
		if score == 0 {
			// Not a rating. Claim it anyway so unrelated chatter does
			// not trigger the quick-reply machine mid-survey; no retry
			// prompt is sent.
			e.logger.Debug("survey ignored unrecognized rating", "response_id", resp.ID)
			return true, nil
		}
		if err := e.responses.SetScore(ctx, resp.ID, score, now, now.Add(commentWindow)); err != nil {
			return true, err
		}
		// The patient's reply opened the 24h conversation window, so the
		// follow-up can go as free-form text.
		if _, err := e.router.Send(ctx, messaging.SendRequest{
			PatientID: resp.PatientID,
			To:        resp.PatientPhone,
			Text:      commentPrompt,
		}); err != nil {
			e.logger.Error("survey follow-up send failed", "response_id", resp.ID, "error", err)
		}
		return true, nil

	case StatusPendingComment:
		if resp.ExpiresAt != nil && now.After(*resp.ExpiresAt) {
			// Expired surveys release the message so the normal
			// conversation path still logs it. The row stays in
			// PENDING_COMMENT.
			return false, nil
		}
		if err := e.responses.SetComment(ctx, resp.ID, text, now); err != nil {
			return true, err
		}
		e.metrics.ObserveSurveyCompleted()
		if _, err := e.router.Send(ctx, messaging.SendRequest{
			PatientID: resp.PatientID,
			To:        resp.PatientPhone,
			Text:      thankYou,
		}); err != nil {
			e.logger.Error("survey thank-you send failed", "response_id", resp.ID, "error", err)
		}
		return true, nil
	}
	return false, nil
}
