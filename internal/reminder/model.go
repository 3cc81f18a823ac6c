package reminder

import (
	"time"

	"github.com/google/uuid"
)

// Status is the reminder record lifecycle. pending/sent/failed are set
// by the dispatcher; delivered/read arrive via delivery-status
// callbacks; confirmed/cancelled/rescheduled are set by the quick-reply
// machine from the patient's answer.
type Status string

const (
	StatusPending     Status = "pending"
	StatusSent        Status = "sent"
	StatusFailed      Status = "failed"
	StatusDelivered   Status = "delivered"
	StatusRead        Status = "read"
	StatusConfirmed   Status = "confirmed"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
)

// Record is the audit row for an appointment's reminder. There is at
// most one per appointment; repeated attempts update the same row.
type Record struct {
	ID                uuid.UUID  `json:"id"`
	AppointmentID     uuid.UUID  `json:"appointment_id"`
	Status            Status     `json:"status"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	RetryCount        int        `json:"retry_count"`
	ExternalMessageID string     `json:"external_message_id,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Stats aggregates reminder outcomes for reporting.
type Stats struct {
	Pending   int `json:"pending"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Confirmed int `json:"confirmed"`
	Cancelled int `json:"cancelled"`
}
