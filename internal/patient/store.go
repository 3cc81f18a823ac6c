package patient

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

// Store looks up and creates patient records.
type Store struct {
	db DB
}

// NewStore creates a patient store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const patientColumns = `id, first_name, last_name, COALESCE(dni, ''), COALESCE(email, ''),
	COALESCE(phone, ''), is_lead, birth_date, created_at`

// GetByID fetches a patient, or nil when not found.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := s.db.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	p, err := scanPatient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("patient: get by id: %w", err)
	}
	return p, nil
}

// FindByPhoneSuffix resolves a sender identifier to a patient by matching
// the trailing digits of the stored phone. Returns nil when no patient
// matches.
func (s *Store) FindByPhoneSuffix(ctx context.Context, senderID string) (*Patient, error) {
	suffix := MatchSuffix(senderID)
	if suffix == "" {
		return nil, nil
	}
	row := s.db.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE regexp_replace(COALESCE(phone, ''), '\D', '', 'g') LIKE '%' || $1
		ORDER BY is_lead ASC, created_at ASC
		LIMIT 1`, suffix)
	p, err := scanPatient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("patient: find by phone suffix: %w", err)
	}
	return p, nil
}

// CreateLead inserts a placeholder patient for an unrecognized inbound
// sender so the conversation has somewhere to hang.
func (s *Store) CreateLead(ctx context.Context, senderID string) (*Patient, error) {
	digits := NormalizeDigits(senderID)
	if digits == "" {
		return nil, fmt.Errorf("patient: create lead: sender %q has no digits", senderID)
	}
	p := &Patient{
		ID:        uuid.New(),
		FirstName: "Contacto",
		LastName:  digits,
		Phone:     "+" + digits,
		IsLead:    true,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO patients (id, first_name, last_name, phone, is_lead, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)`,
		p.ID, p.FirstName, p.LastName, p.Phone, p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("patient: create lead: %w", err)
	}
	return p, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DNI, &p.Email, &p.Phone,
		&p.IsLead, &p.BirthDate, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
