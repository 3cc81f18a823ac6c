package appointment

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

// Store reads appointments and applies the status transitions owned by
// the automation engine.
type Store struct {
	db DB
}

// NewStore creates an appointment store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// ListReminderCandidates selects appointments starting within [from, to]
// that still need a reminder. Appointments whose reminder record reached
// a successful status, or exhausted its retries, are excluded here; that
// exclusion is the only idempotency guard, so overlapping runs can race
// (single-runner semantics are assumed).
func (s *Store) ListReminderCandidates(ctx context.Context, from, to time.Time) ([]Candidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.patient_id, a.professional_id, a.branch_id, a.start_at, a.end_at, a.status,
		       TRIM(p.first_name || ' ' || p.last_name) AS patient_name,
		       COALESCE(p.phone, '') AS patient_phone,
		       COALESCE(pr.honorific, '') AS professional_honorific,
		       COALESCE(TRIM(pr.first_name || ' ' || pr.last_name), '') AS professional_name,
		       COALESCE(b.name, '') AS branch_name
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		LEFT JOIN professionals pr ON pr.id = a.professional_id
		LEFT JOIN branches b ON b.id = a.branch_id
		WHERE a.start_at >= $1 AND a.start_at <= $2
		  AND a.status IN ('SCHEDULED', 'CONFIRMED', 'PENDING')
		  AND NOT EXISTS (
			SELECT 1 FROM reminder_records r
			WHERE r.appointment_id = a.id
			  AND (r.status IN ('sent', 'delivered', 'read', 'confirmed', 'cancelled', 'rescheduled')
			       OR r.retry_count >= 2)
		  )
		ORDER BY a.start_at ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("appointment: list reminder candidates: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// ListSurveyCandidates selects COMPLETED appointments whose end time
// falls in (from, to] and that have no survey response yet.
func (s *Store) ListSurveyCandidates(ctx context.Context, from, to time.Time) ([]Candidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.patient_id, a.professional_id, a.branch_id, a.start_at, a.end_at, a.status,
		       TRIM(p.first_name || ' ' || p.last_name) AS patient_name,
		       COALESCE(p.phone, '') AS patient_phone,
		       COALESCE(pr.honorific, '') AS professional_honorific,
		       COALESCE(TRIM(pr.first_name || ' ' || pr.last_name), '') AS professional_name,
		       COALESCE(b.name, '') AS branch_name
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		LEFT JOIN professionals pr ON pr.id = a.professional_id
		LEFT JOIN branches b ON b.id = a.branch_id
		WHERE a.status = 'COMPLETED'
		  AND a.end_at > $1 AND a.end_at <= $2
		  AND NOT EXISTS (
			SELECT 1 FROM nps_survey_responses n WHERE n.appointment_id = a.id
		  )
		ORDER BY a.end_at ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("appointment: list survey candidates: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// NearestFuture returns the patient's chronologically nearest appointment
// starting after the given time with status SCHEDULED or CONFIRMED, or
// nil when there is none. When a patient has several qualifying
// appointments the earliest one wins.
func (s *Store) NearestFuture(ctx context.Context, patientID uuid.UUID, after time.Time) (*Appointment, error) {
	var a Appointment
	err := s.db.QueryRow(ctx, `
		SELECT id, patient_id, professional_id, branch_id, start_at, end_at, status
		FROM appointments
		WHERE patient_id = $1 AND start_at > $2 AND status IN ('SCHEDULED', 'CONFIRMED')
		ORDER BY start_at ASC
		LIMIT 1`, patientID, after).
		Scan(&a.ID, &a.PatientID, &a.ProfessionalID, &a.BranchID, &a.StartAt, &a.EndAt, &a.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("appointment: nearest future: %w", err)
	}
	return &a, nil
}

// SetStatus updates an appointment's status.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET status = $1, updated_at = now() WHERE id = $2`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("appointment: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment: set status: no appointment with id %s", id)
	}
	return nil
}

func scanCandidates(rows pgx.Rows) ([]Candidate, error) {
	var result []Candidate
	for rows.Next() {
		var c Candidate
		var status string
		err := rows.Scan(
			&c.ID, &c.PatientID, &c.ProfessionalID, &c.BranchID,
			&c.StartAt, &c.EndAt, &status,
			&c.PatientName, &c.PatientPhone,
			&c.ProfessionalHonorific, &c.ProfessionalName, &c.BranchName,
		)
		if err != nil {
			return nil, fmt.Errorf("appointment: scan candidate: %w", err)
		}
		c.Status = Status(status)
		result = append(result, c)
	}
	return result, rows.Err()
}
