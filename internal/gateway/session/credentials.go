package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// CredentialStore persists opaque session credential blobs keyed by
// category+id. The payload format belongs to the session bridge; nothing
// else in the engine interprets it.
type CredentialStore interface {
	Get(ctx context.Context, category, id string) ([]byte, error)
	Put(ctx context.Context, category, id string, data []byte) error
	Delete(ctx context.Context, category, id string) error
}

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgCredentialStore stores credential blobs in the session_credentials
// table, one row per key, written atomically via upsert.
type PgCredentialStore struct {
	db DB
}

// NewPgCredentialStore creates a Postgres-backed credential store.
func NewPgCredentialStore(db DB) *PgCredentialStore {
	return &PgCredentialStore{db: db}
}

var _ CredentialStore = (*PgCredentialStore)(nil)

// Get returns the blob for category+id, or nil when absent.
func (s *PgCredentialStore) Get(ctx context.Context, category, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(ctx, `
		SELECT data FROM session_credentials WHERE category = $1 AND cred_id = $2`,
		category, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: get credential %s/%s: %w", category, id, err)
	}
	return data, nil
}

// Put writes the blob for category+id, replacing any previous value.
func (s *PgCredentialStore) Put(ctx context.Context, category, id string, data []byte) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO session_credentials (category, cred_id, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (category, cred_id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		category, id, data)
	if err != nil {
		return fmt.Errorf("session: put credential %s/%s: %w", category, id, err)
	}
	return nil
}

// Delete removes the blob for category+id.
func (s *PgCredentialStore) Delete(ctx context.Context, category, id string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM session_credentials WHERE category = $1 AND cred_id = $2`,
		category, id)
	if err != nil {
		return fmt.Errorf("session: delete credential %s/%s: %w", category, id, err)
	}
	return nil
}
