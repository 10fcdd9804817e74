package domain

import (
	"errors"
	"time"
)

type AIChatSessionID string

type AIChatStatus string

const (
	AIChatActive    AIChatStatus = "active"
	AIChatCompleted AIChatStatus = "completed"
	AIChatEscalated AIChatStatus = "escalated_to_doctor"
	AIChatAbandoned AIChatStatus = "abandoned"
)

// MaxAIChatMessages is a hard cap per session; appends past it always fail.
const MaxAIChatMessages = 100

var (
	ErrInvalidTransition     = errors.New("invalid session transition")
	ErrSessionClosed         = errors.New("session is closed")
	ErrMessageLimitExceeded  = errors.New("message limit exceeded")
	ErrEmptyEscalationReason = errors.New("escalation requires a reason")
	ErrFeedbackOnActive      = errors.New("feedback requires a finished session")
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskAnalysis is produced by the external triage model.
type RiskAnalysis struct {
	Level             RiskLevel `json:"level"`
	DoctorRecommended bool      `json:"doctor_recommended"`
	Summary           string    `json:"summary,omitempty"`
}

func (r RiskAnalysis) RequiresDoctor() bool {
	return r.Level == RiskHigh || r.DoctorRecommended
}

type AIChatMessage struct {
	Sender  string        `json:"sender"` // "user" | "assistant" | "system"
	Content string        `json:"content"`
	Type    string        `json:"type"`
	SentAt  time.Time     `json:"sent_at"`
	Risk    *RiskAnalysis `json:"risk,omitempty"`
}

// AIChatSession is the aggregate for one symptom-triage conversation.
// Callers are responsible for serializing mutations per session; the methods
// here only enforce legality, they do not lock.
type AIChatSession struct {
	ID                   AIChatSessionID `json:"id"`
	UserID               UserID          `json:"user_id"`
	Symptoms             []string        `json:"symptoms"`
	Messages             []AIChatMessage `json:"messages"`
	MessageCount         int             `json:"message_count"`
	Status               AIChatStatus    `json:"status"`
	StartedAt            time.Time       `json:"started_at"`
	CompletedAt          *time.Time      `json:"completed_at,omitempty"`
	EscalationReason     string          `json:"escalation_reason,omitempty"`
	LinkedConsultationID ConsultationID  `json:"linked_consultation_id,omitempty"`
	FinalRisk            *RiskAnalysis   `json:"final_risk,omitempty"`
	Feedback             string          `json:"feedback,omitempty"`
}

func NewAIChatSession(id AIChatSessionID, userID UserID, symptoms []string) *AIChatSession {
	return &AIChatSession{
		ID:        id,
		UserID:    userID,
		Symptoms:  symptoms,
		Messages:  make([]AIChatMessage, 0, 8),
		Status:    AIChatActive,
		StartedAt: time.Now(),
	}
}

func (s *AIChatSession) CanAcceptMessage() bool {
	return s.Status == AIChatActive && s.MessageCount < MaxAIChatMessages
}

// AppendMessage adds a message to an active session. The cap is checked
// before the status so that an over-limit session reports the limit error
// no matter what state it ended up in.
func (s *AIChatSession) AppendMessage(m AIChatMessage) error {
	if s.MessageCount >= MaxAIChatMessages {
		return ErrMessageLimitExceeded
	}
	if s.Status != AIChatActive {
		return ErrSessionClosed
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now()
	}
	s.Messages = append(s.Messages, m)
	s.MessageCount++
	return nil
}

// transition is the single place transition legality is decided: only an
// active session may move, and only to a terminal state.
func (s *AIChatSession) transition(to AIChatStatus) error {
	if s.Status != AIChatActive {
		return ErrInvalidTransition
	}
	now := time.Now()
	s.Status = to
	s.CompletedAt = &now
	return nil
}

func (s *AIChatSession) Complete() error {
	return s.transition(AIChatCompleted)
}

func (s *AIChatSession) Escalate(reason string, linked ConsultationID) error {
	if reason == "" {
		return ErrEmptyEscalationReason
	}
	if err := s.transition(AIChatEscalated); err != nil {
		return err
	}
	s.EscalationReason = reason
	s.LinkedConsultationID = linked
	return nil
}

func (s *AIChatSession) Abandon() error {
	return s.transition(AIChatAbandoned)
}

// ApplyRiskAnalysis records the final risk verdict and auto-escalates when
// it calls for a doctor. Check and transition happen in one call so a
// concurrent manual escalation cannot also win; callers hold the session
// lock around this.
func (s *AIChatSession) ApplyRiskAnalysis(r RiskAnalysis) (escalated bool, err error) {
	s.FinalRisk = &r
	if !r.RequiresDoctor() || s.Status != AIChatActive {
		return false, nil
	}
	reason := "automatic escalation: triage risk analysis requires doctor review"
	if err := s.Escalate(reason, ""); err != nil {
		return false, err
	}
	return true, nil
}

// AttachFeedback is the only mutation permitted after a terminal state.
func (s *AIChatSession) AttachFeedback(feedback string) error {
	if s.Status == AIChatActive {
		return ErrFeedbackOnActive
	}
	s.Feedback = feedback
	return nil
}
