package nps

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the survey state machine. PENDING_SCORE waits for the
// 3-option rating; PENDING_COMMENT waits for the free-form follow-up and
// expires after a fixed window; COMPLETED is terminal.
type Status string

const (
	StatusPendingScore   Status = "PENDING_SCORE"
	StatusPendingComment Status = "PENDING_COMMENT"
	StatusCompleted      Status = "COMPLETED"
)

// Response is one patient's survey for one appointment.
type Response struct {
	ID                uuid.UUID  `json:"id"`
	AppointmentID     uuid.UUID  `json:"appointment_id"`
	PatientID         uuid.UUID  `json:"patient_id"`
	PatientPhone      string     `json:"patient_phone"`
	Status            Status     `json:"status"`
	Score             *int       `json:"score,omitempty"`
	Comment           string     `json:"comment,omitempty"`
	SentAt            time.Time  `json:"sent_at"`
	ScoreReceivedAt   *time.Time `json:"score_received_at,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	CommentReceivedAt *time.Time `json:"comment_received_at,omitempty"`
}

// ParseScore maps a patient's answer to a score by case-insensitive
// substring: mala→1, regular→3, excelente→5. Returns 0 when the text
// matches none of them.
func ParseScore(text string) int {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "mala"):
		return 1
	case strings.Contains(lower, "regular"):
		return 3
	case strings.Contains(lower, "excelente"):
		return 5
	default:
		return 0
	}
}
