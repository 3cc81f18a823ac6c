package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists reminder records, one row per appointment.
type Store struct {
	db DB
}

// NewStore creates a reminder store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Upsert creates the appointment's reminder record in `pending`, or
// resets an existing non-successful one back to `pending` for a retry.
// The retry counter survives the reset. Returns the record id.
func (s *Store) Upsert(ctx context.Context, appointmentID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
		INSERT INTO reminder_records (id, appointment_id, status, retry_count, created_at)
		VALUES ($1, $2, 'pending', 0, now())
		ON CONFLICT (appointment_id)
		DO UPDATE SET status = 'pending', error_message = NULL
		RETURNING id`,
		uuid.New(), appointmentID).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("reminder: upsert record: %w", err)
	}
	return id, nil
}

// MarkSent records a successful dispatch.
func (s *Store) MarkSent(ctx context.Context, appointmentID uuid.UUID, externalMessageID string, sentAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE reminder_records
		SET status = 'sent', external_message_id = $1, sent_at = $2, error_message = NULL
		WHERE appointment_id = $3`,
		externalMessageID, sentAt, appointmentID)
	if err != nil {
		return fmt.Errorf("reminder: mark sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reminder: mark sent: no record for appointment %s", appointmentID)
	}
	return nil
}

// MarkFailed records a failed dispatch, keeps the gateway error verbatim
// and increments the retry counter. Selection stops retrying once the
// counter reaches 2.
func (s *Store) MarkFailed(ctx context.Context, appointmentID uuid.UUID, sendErr string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE reminder_records
		SET status = 'failed', retry_count = retry_count + 1, error_message = $1
		WHERE appointment_id = $2`,
		sendErr, appointmentID)
	if err != nil {
		return fmt.Errorf("reminder: mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reminder: mark failed: no record for appointment %s", appointmentID)
	}
	return nil
}

// SetStatusByAppointment applies a quick-reply outcome (confirmed,
// cancelled, rescheduled) to the appointment's reminder record. A
// missing record is not an error: the patient may answer an appointment
// that was never reminded by this engine.
func (s *Store) SetStatusByAppointment(ctx context.Context, appointmentID uuid.UUID, status Status) error {
	_, err := s.db.Exec(ctx, `
		UPDATE reminder_records SET status = $1 WHERE appointment_id = $2`,
		string(status), appointmentID)
	if err != nil {
		return fmt.Errorf("reminder: set status by appointment: %w", err)
	}
	return nil
}

// UpdateByExternalID upgrades a record's delivery state from a gateway
// status callback. Only the sent → delivered → read ladder is applied;
// a late `delivered` never downgrades `read`, and quick-reply outcomes
// are never overwritten. Reports whether a record matched.
func (s *Store) UpdateByExternalID(ctx context.Context, externalMessageID string, status Status) (bool, error) {
	if status != StatusDelivered && status != StatusRead {
		return false, nil
	}
	allowed := []string{"sent"}
	if status == StatusRead {
		allowed = append(allowed, "delivered")
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE reminder_records
		SET status = $1
		WHERE external_message_id = $2 AND status = ANY($3)`,
		string(status), externalMessageID, allowed)
	if err != nil {
		return false, fmt.Errorf("reminder: update by external id: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByAppointment returns the appointment's reminder record, or nil.
func (s *Store) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Record, error) {
	var r Record
	var status string
	err := s.db.QueryRow(ctx, `
		SELECT id, appointment_id, status, sent_at, retry_count,
		       COALESCE(external_message_id, ''), COALESCE(error_message, ''), created_at
		FROM reminder_records
		WHERE appointment_id = $1`, appointmentID).
		Scan(&r.ID, &r.AppointmentID, &status, &r.SentAt, &r.RetryCount,
			&r.ExternalMessageID, &r.ErrorMessage, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reminder: get by appointment: %w", err)
	}
	r.Status = Status(status)
	return &r, nil
}

// GetStats aggregates reminder outcomes for records created in [from, to].
func (s *Store) GetStats(ctx context.Context, from, to time.Time) (*Stats, error) {
	var st Stats
	err := s.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status IN ('sent', 'delivered', 'read')),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COUNT(*) FILTER (WHERE status IN ('cancelled', 'rescheduled'))
		FROM reminder_records
		WHERE created_at >= $1 AND created_at <= $2`, from, to).
		Scan(&st.Pending, &st.Sent, &st.Failed, &st.Confirmed, &st.Cancelled)
	if err != nil {
		return nil, fmt.Errorf("reminder: get stats: %w", err)
	}
	return &st, nil
}
