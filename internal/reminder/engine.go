package reminder

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

// batchHour is the local hour at which the engine switches from the
// rolling window to the full next-day sweep. The sweep catches
// appointments the rolling window missed (downtime, late bookings).
const batchHour = 18

// throttleThreshold is the batch size above which sends are spaced out.
const throttleThreshold = 10

type settingsReader interface {
	AutomationEnabled(ctx context.Context) (bool, error)
	CampaignEnabled(ctx context.Context, key string) (bool, error)
	ReminderHoursBefore(ctx context.Context) (int, error)
}

type candidateLister interface {
	ListReminderCandidates(ctx context.Context, from, to time.Time) ([]appointment.Candidate, error)
}

type recordWriter interface {
	Upsert(ctx context.Context, appointmentID uuid.UUID) (uuid.UUID, error)
	MarkSent(ctx context.Context, appointmentID uuid.UUID, externalMessageID string, sentAt time.Time) error
	MarkFailed(ctx context.Context, appointmentID uuid.UUID, sendErr string) error
}

type sender interface {
	Send(ctx context.Context, req messaging.SendRequest) (*messaging.Message, error)
}

// Report summarizes one engine run.
type Report struct {
	Selected int `json:"selected"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Engine selects appointments due for a reminder and dispatches them
// through the messaging router on the template channel.
type Engine struct {
	settings     settingsReader
	appointments candidateLister
	records      recordWriter
	router       sender
	clock        clock.Clock
	metrics      *metrics.AutomationMetrics
	logger       *logging.Logger

	templateName string
	clinicName   string
	sendDelay    time.Duration
}

// NewEngine creates a reminder engine. sendDelay spaces sends inside
// large batches; pass 0 to disable throttling.
func NewEngine(
	st settingsReader,
	appts candidateLister,
	records recordWriter,
	router sender,
	clk clock.Clock,
	m *metrics.AutomationMetrics,
	logger *logging.Logger,
	templateName, clinicName string,
	sendDelay time.Duration,
) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		settings:     st,
		appointments: appts,
		records:      records,
		router:       router,
		clock:        clk,
		metrics:      m,
		logger:       logger,
		templateName: templateName,
		clinicName:   clinicName,
		sendDelay:    sendDelay,
	}
}

// ProcessReminders runs one selection-and-dispatch cycle. At the batch
// hour it sweeps all of tomorrow; at any other hour it uses a rolling
// window of ±1h around now + hours-before. Idempotency rests on the
// selection filter alone, so only one runner should be active.
func (e *Engine) ProcessReminders(ctx context.Context) (*Report, error) {
	report := &Report{}

	enabled, err := e.settings.AutomationEnabled(ctx)
	if err != nil {
		return nil, err
	}
	if !enabled {
		e.logger.Debug("reminder run skipped: automation disabled")
		return report, nil
	}
	enabled, err = e.settings.CampaignEnabled(ctx, settings.KeyRemindersEnabled)
	if err != nil {
		return nil, err
	}
	if !enabled {
		e.logger.Debug("reminder run skipped: reminders disabled")
		return report, nil
	}

	hoursBefore, err := e.settings.ReminderHoursBefore(ctx)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now().In(e.clock.Location())
	from, to, strategy := selectionWindow(now, hoursBefore)

	candidates, err := e.appointments.ListReminderCandidates(ctx, from, to)
	if err != nil {
		return nil, err
	}
	report.Selected = len(candidates)
	e.metrics.ObserveRemindersSelected(len(candidates))
	e.logger.Info("reminder candidates selected",
		"strategy", strategy, "count", len(candidates),
		"window_from", from, "window_to", to)

	throttled := len(candidates) > throttleThreshold
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if throttled && i > 0 && e.sendDelay > 0 {
			if err := sleep(ctx, e.sendDelay); err != nil {
				return report, err
			}
		}
		e.dispatch(ctx, c, report)
	}

	e.logger.Info("reminder run finished",
		"sent", report.Sent, "failed", report.Failed, "skipped", report.Skipped)
	return report, nil
}

// dispatch sends one reminder and records the outcome. Errors are
// absorbed into the report so one bad appointment cannot stall the batch.
func (e *Engine) dispatch(ctx context.Context, c appointment.Candidate, report *Report) {
	if strings.TrimSpace(c.PatientPhone) == "" {
		report.Skipped++
		e.logger.Warn("reminder skipped: patient has no phone",
			"appointment_id", c.ID, "patient_id", c.PatientID)
		return
	}

	if _, err := e.records.Upsert(ctx, c.ID); err != nil {
		report.Failed++
		e.logger.Error("reminder record upsert failed", "appointment_id", c.ID, "error", err)
		return
	}

	msg, sendErr := e.router.Send(ctx, messaging.SendRequest{
		PatientID: c.PatientID,
		To:        c.PatientPhone,
		Template: &gateway.TemplateRequest{
			To:       c.PatientPhone,
			Template: e.templateName,
			Params:   TemplateParams(c, e.clock.Location(), e.clinicName),
		},
	})
	if sendErr != nil {
		report.Failed++
		e.metrics.ObserveReminderDispatch("failed")
		e.logger.Error("reminder send failed", "appointment_id", c.ID, "error", sendErr)
		if err := e.records.MarkFailed(ctx, c.ID, sendErr.Error()); err != nil {
			e.logger.Error("reminder record update failed", "appointment_id", c.ID, "error", err)
		}
		return
	}

	report.Sent++
	e.metrics.ObserveReminderDispatch("sent")
	if err := e.records.MarkSent(ctx, c.ID, msg.ExternalID, e.clock.Now()); err != nil {
		e.logger.Error("reminder record update failed", "appointment_id", c.ID, "error", err)
	}
}

// selectionWindow picks the eligibility window for a run at the given
// local time.
func selectionWindow(now time.Time, hoursBefore int) (from, to time.Time, strategy string) {
	if now.Hour() == batchHour {
		from = time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
		to = from.AddDate(0, 0, 1).Add(-time.Second)
		return from, to, "batch"
	}
	center := now.Add(time.Duration(hoursBefore) * time.Hour)
	return center.Add(-time.Hour), center.Add(time.Hour), "rolling"
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
