package session

import "time"

// Wire frames exchanged with the session bridge. The protocol is an
// internal detail of this package.

type frame struct {
	Type        string          `json:"type"`
	ID          string          `json:"id,omitempty"`
	QR          string          `json:"qr,omitempty"`
	State       string          `json:"state,omitempty"`
	Number      string          `json:"number,omitempty"`
	Credentials *credentialBlob `json:"credentials,omitempty"`
	Message     *inboundPayload `json:"message,omitempty"`
	Ack         *ackPayload     `json:"ack,omitempty"`
	Status      *statusPayload  `json:"status_update,omitempty"`
	Send        *sendPayload    `json:"send,omitempty"`
	Device      string          `json:"device,omitempty"`
}

type credentialBlob struct {
	Category string `json:"category"`
	ID       string `json:"id"`
	Data     []byte `json:"data"`
}

type inboundPayload struct {
	MessageID string    `json:"message_id"`
	Sender    string    `json:"sender"`
	FromSelf  bool      `json:"from_self"`
	Text      string    `json:"text,omitempty"`
	Button    string    `json:"button,omitempty"`
	MediaURL  string    `json:"media_url,omitempty"`
	MediaType string    `json:"media_type,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ackPayload struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

type statusPayload struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

type sendPayload struct {
	To      string `json:"to"`
	Text    string `json:"text,omitempty"`
	Kind    string `json:"kind,omitempty"`
	URL     string `json:"url,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// InboundMessage is an inbound event delivered to the registered handler.
type InboundMessage struct {
	MessageID string
	SenderID  string
	FromSelf  bool
	Text      string
	Button    string
	MediaURL  string
	MediaType string
	Timestamp time.Time
}
