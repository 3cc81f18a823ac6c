package nps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cedinhealth/clinic-automation/internal/patient"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists survey responses, one row per appointment.
type Store struct {
	db DB
}

// NewStore creates a survey store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const responseColumns = `id, appointment_id, patient_id, patient_phone, status, score,
	COALESCE(comment, ''), sent_at, score_received_at, expires_at, comment_received_at`

// Create opens a survey for the appointment in PENDING_SCORE. The unique
// constraint on appointment_id rejects a second survey for the same
// visit.
func (s *Store) Create(ctx context.Context, r *Response) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.Status = StatusPendingScore
	_, err := s.db.Exec(ctx, `
		INSERT INTO nps_survey_responses (id, appointment_id, patient_id, patient_phone, status, sent_at)
		VALUES ($1, $2, $3, $4, 'PENDING_SCORE', $5)`,
		r.ID, r.AppointmentID, r.PatientID, r.PatientPhone, r.SentAt)
	if err != nil {
		return fmt.Errorf("nps: create response: %w", err)
	}
	return nil
}

// FindActiveByPhone returns the newest non-terminal survey whose patient
// phone matches the sender's trailing digits, or nil.
func (s *Store) FindActiveByPhone(ctx context.Context, senderID string) (*Response, error) {
	suffix := patient.MatchSuffix(senderID)
	if suffix == "" {
		return nil, nil
	}
	row := s.db.QueryRow(ctx, `
		SELECT `+responseColumns+`
		FROM nps_survey_responses
		WHERE status IN ('PENDING_SCORE', 'PENDING_COMMENT')
		  AND regexp_replace(patient_phone, '\D', '', 'g') LIKE '%' || $1
		ORDER BY sent_at DESC
		LIMIT 1`, suffix)
	r, err := scanResponse(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("nps: find active by phone: %w", err)
	}
	return r, nil
}

// SetScore records the rating and opens the comment phase with its
// expiry deadline.
func (s *Store) SetScore(ctx context.Context, id uuid.UUID, score int, receivedAt, expiresAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE nps_survey_responses
		SET status = 'PENDING_COMMENT', score = $1, score_received_at = $2, expires_at = $3
		WHERE id = $4 AND status = 'PENDING_SCORE'`,
		score, receivedAt, expiresAt, id)
	if err != nil {
		return fmt.Errorf("nps: set score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("nps: set score: response %s not in PENDING_SCORE", id)
	}
	return nil
}

// SetComment records the free-form comment and closes the survey.
func (s *Store) SetComment(ctx context.Context, id uuid.UUID, comment string, receivedAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE nps_survey_responses
		SET status = 'COMPLETED', comment = $1, comment_received_at = $2
		WHERE id = $3 AND status = 'PENDING_COMMENT'`,
		comment, receivedAt, id)
	if err != nil {
		return fmt.Errorf("nps: set comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("nps: set comment: response %s not in PENDING_COMMENT", id)
	}
	return nil
}

func scanResponse(row pgx.Row) (*Response, error) {
	var r Response
	var status string
	err := row.Scan(&r.ID, &r.AppointmentID, &r.PatientID, &r.PatientPhone, &status,
		&r.Score, &r.Comment, &r.SentAt, &r.ScoreReceivedAt, &r.ExpiresAt, &r.CommentReceivedAt)
	if err != nil {
		return nil, err
	}
	r.Status = Status(status)
	return &r, nil
}
