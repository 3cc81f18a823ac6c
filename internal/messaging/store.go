package messaging

import (
	"context"
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

// Store persists the conversation log.
type Store struct {
	db DB
}

// NewStore creates a messaging store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// FindOrCreateConversation returns the conversation for (patient,
// channel), creating it when absent. The no-op DO UPDATE makes the
// RETURNING clause yield the existing row on conflict.
func (s *Store) FindOrCreateConversation(ctx context.Context, patientID uuid.UUID, channel Channel) (*Conversation, error) {
	var c Conversation
	var status string
	err := s.db.QueryRow(ctx, `
		INSERT INTO conversations (id, patient_id, channel, status, unread_count, created_at)
		VALUES ($1, $2, $3, 'open', 0, now())
		ON CONFLICT (patient_id, channel)
		DO UPDATE SET patient_id = EXCLUDED.patient_id
		RETURNING id, patient_id, channel, status, last_message_at, unread_count, created_at`,
		uuid.New(), patientID, string(channel)).
		Scan(&c.ID, &c.PatientID, &c.Channel, &status, &c.LastMessageAt, &c.UnreadCount, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("messaging: find or create conversation: %w", err)
	}
	c.Status = ConversationStatus(status)
	return &c, nil
}

// HasMessageWithExternalID reports whether a message with the given
// gateway id was already logged, for inbound de-duplication.
func (s *Store) HasMessageWithExternalID(ctx context.Context, externalID string) (bool, error) {
	if externalID == "" {
		return false, nil
	}
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM conversation_messages WHERE external_id = $1)`,
		externalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("messaging: check external id: %w", err)
	}
	return exists, nil
}

// AppendMessage adds a message to the log and updates the conversation's
// bookkeeping: last_message_at always, unread_count only for inbound.
func (s *Store) AppendMessage(ctx context.Context, m *Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	if m.Type == "" {
		m.Type = TypeText
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO conversation_messages (id, conversation_id, sender, content, type, status, external_id, provider, media_url, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)`,
		m.ID, m.ConversationID, string(m.Sender), m.Content, string(m.Type), m.Status,
		m.ExternalID, string(m.Provider), m.MediaURL, m.SentAt)
	if err != nil {
		return fmt.Errorf("messaging: append message: %w", err)
	}

	unreadDelta := 0
	if m.Sender == SenderPatient {
		unreadDelta = 1
	}
	_, err = s.db.Exec(ctx, `
		UPDATE conversations
		SET last_message_at = $1, unread_count = unread_count + $2, status = 'open'
		WHERE id = $3`,
		m.SentAt, unreadDelta, m.ConversationID)
	if err != nil {
		return fmt.Errorf("messaging: bump conversation: %w", err)
	}
	return nil
}

// UpdateMessageStatus correlates a delivery-status callback to a logged
// message by its gateway id. Unknown ids are not an error; receipts can
// arrive for messages logged elsewhere.
func (s *Store) UpdateMessageStatus(ctx context.Context, externalID, status string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE conversation_messages SET status = $1 WHERE external_id = $2`,
		status, externalID)
	if err != nil {
		return false, fmt.Errorf("messaging: update message status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementUnread flags a conversation for staff attention.
func (s *Store) IncrementUnread(ctx context.Context, conversationID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE conversations SET unread_count = unread_count + 1 WHERE id = $1`,
		conversationID)
	if err != nil {
		return fmt.Errorf("messaging: increment unread: %w", err)
	}
	return nil
}

// MarkRead clears the unread counter.
func (s *Store) MarkRead(ctx context.Context, conversationID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE conversations SET unread_count = 0 WHERE id = $1`,
		conversationID)
	if err != nil {
		return fmt.Errorf("messaging: mark read: %w", err)
	}
	return nil
}
