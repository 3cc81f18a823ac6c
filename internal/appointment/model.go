package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Status is the appointment lifecycle state. The automation engine only
// transitions SCHEDULED/CONFIRMED appointments to CONFIRMED or CANCELLED;
// every other transition belongs to the clinic management API.
type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusConfirmed  Status = "CONFIRMED"
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusNoShow     Status = "NO_SHOW"
	StatusBilled     Status = "BILLED"
)

// Appointment is the scheduling record the engine reads and whose status
// it mutates.
type Appointment struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	ProfessionalID *uuid.UUID `json:"professional_id,omitempty"`
	BranchID       *uuid.UUID `json:"branch_id,omitempty"`
	StartAt        time.Time  `json:"start_at"`
	EndAt          time.Time  `json:"end_at"`
	Status         Status     `json:"status"`
}

// Candidate is an appointment selected for outreach, joined with the
// display fields the message templates need.
type Candidate struct {
	Appointment
	PatientName           string
	PatientPhone          string
	ProfessionalHonorific string
	ProfessionalName      string
	BranchName            string
}
