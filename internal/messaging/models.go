package messaging

import (
	"time"

	"github.com/google/uuid"

	"github.com/cedinhealth/clinic-automation/internal/gateway"
)

// Channel identifies the messaging channel of a conversation. WhatsApp is
// the only channel today; the column exists so the (patient, channel)
// uniqueness survives adding another one.
type Channel string

const ChannelWhatsApp Channel = "whatsapp"

// ConversationStatus is the open/closed state of a conversation.
type ConversationStatus string

const (
	ConversationOpen   ConversationStatus = "open"
	ConversationClosed ConversationStatus = "closed"
)

// Sender says which side of the conversation produced a message.
type Sender string

const (
	SenderClinic  Sender = "clinic"
	SenderPatient Sender = "patient"
)

// MessageType classifies message content.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeAudio    MessageType = "audio"
	TypeVideo    MessageType = "video"
	TypeDocument MessageType = "document"
)

// Conversation groups all messages with one patient on one channel.
// At most one exists per (patient, channel); it is created lazily on the
// first message in either direction.
type Conversation struct {
	ID            uuid.UUID          `json:"id"`
	PatientID     uuid.UUID          `json:"patient_id"`
	Channel       Channel            `json:"channel"`
	Status        ConversationStatus `json:"status"`
	LastMessageAt *time.Time         `json:"last_message_at,omitempty"`
	UnreadCount   int                `json:"unread_count"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Message is one entry in the append-only conversation log.
type Message struct {
	ID             uuid.UUID        `json:"id"`
	ConversationID uuid.UUID        `json:"conversation_id"`
	Sender         Sender           `json:"sender"`
	Content        string           `json:"content"`
	Type           MessageType      `json:"type"`
	Status         string           `json:"status"`
	ExternalID     string           `json:"external_id,omitempty"`
	Provider       gateway.Provider `json:"provider,omitempty"`
	MediaURL       string           `json:"media_url,omitempty"`
	SentAt         time.Time        `json:"sent_at"`
}
