package domain

import "time"

type ConsultationID string

type ConsultationStatus string

const (
	ConsultationScheduled  ConsultationStatus = "scheduled"
	ConsultationInProgress ConsultationStatus = "in_progress"
	ConsultationCompleted  ConsultationStatus = "completed"
	ConsultationCancelled  ConsultationStatus = "cancelled"
)

// Consultation is the domain record owned by the persistence collaborator.
// The coordination layer only reads it to authorize room operations and
// writes its status on doctor request.
type Consultation struct {
	ID          ConsultationID     `json:"id"`
	PatientID   UserID             `json:"patient_id"`
	DoctorID    UserID             `json:"doctor_id"`
	Status      ConsultationStatus `json:"status"`
	Type        string             `json:"type"`
	ScheduledAt time.Time          `json:"scheduled_at"`
}

// IsParticipant reports whether the user is one of the two parties.
func (c *Consultation) IsParticipant(uid UserID) bool {
	return uid == c.PatientID || uid == c.DoctorID
}
