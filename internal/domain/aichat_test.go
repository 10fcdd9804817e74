package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medilink/telemed/internal/domain"
)

func newSession() *domain.AIChatSession {
	return domain.NewAIChatSession("s1", "patient-1", []string{"headache"})
}

func TestTransitionsAreOneWay(t *testing.T) {
	s := newSession()
	require.NoError(t, s.Complete())
	assert.Equal(t, domain.AIChatCompleted, s.Status)
	require.NotNil(t, s.CompletedAt)

	assert.ErrorIs(t, s.Escalate("needs doctor", ""), domain.ErrInvalidTransition)
	assert.ErrorIs(t, s.Abandon(), domain.ErrInvalidTransition)
	assert.ErrorIs(t, s.Complete(), domain.ErrInvalidTransition)
	// the first terminal status sticks
	assert.Equal(t, domain.AIChatCompleted, s.Status)
}

func TestAbandon(t *testing.T) {
	s := newSession()
	require.NoError(t, s.Abandon())
	assert.Equal(t, domain.AIChatAbandoned, s.Status)
}

func TestEscalateRequiresReason(t *testing.T) {
	s := newSession()
	assert.ErrorIs(t, s.Escalate("", ""), domain.ErrEmptyEscalationReason)
	assert.Equal(t, domain.AIChatActive, s.Status)

	require.NoError(t, s.Escalate("chest pain reported", "c9"))
	assert.Equal(t, domain.AIChatEscalated, s.Status)
	assert.Equal(t, "chest pain reported", s.EscalationReason)
	assert.Equal(t, domain.ConsultationID("c9"), s.LinkedConsultationID)
}

func TestAppendMessage(t *testing.T) {
	s := newSession()
	require.True(t, s.CanAcceptMessage())
	require.NoError(t, s.AppendMessage(domain.AIChatMessage{Sender: "user", Content: "hi"}))
	assert.Equal(t, 1, s.MessageCount)
	assert.False(t, s.Messages[0].SentAt.IsZero())

	require.NoError(t, s.Complete())
	assert.False(t, s.CanAcceptMessage())
	assert.ErrorIs(t, s.AppendMessage(domain.AIChatMessage{Sender: "user", Content: "late"}), domain.ErrSessionClosed)
}

func TestMessageCapWinsOverStatus(t *testing.T) {
	s := newSession()
	for i := 0; i < domain.MaxAIChatMessages; i++ {
		require.NoError(t, s.AppendMessage(domain.AIChatMessage{Sender: "user", Content: "m"}))
	}
	assert.ErrorIs(t, s.AppendMessage(domain.AIChatMessage{Sender: "user", Content: "over"}), domain.ErrMessageLimitExceeded)

	require.NoError(t, s.Complete())
	// cap error still reported on a closed session
	assert.ErrorIs(t, s.AppendMessage(domain.AIChatMessage{Sender: "user", Content: "over"}), domain.ErrMessageLimitExceeded)
}

func TestAutoEscalation(t *testing.T) {
	s := newSession()
	escalated, err := s.ApplyRiskAnalysis(domain.RiskAnalysis{Level: domain.RiskLow})
	require.NoError(t, err)
	assert.False(t, escalated)
	assert.Equal(t, domain.AIChatActive, s.Status)

	escalated, err = s.ApplyRiskAnalysis(domain.RiskAnalysis{Level: domain.RiskHigh})
	require.NoError(t, err)
	assert.True(t, escalated)
	assert.Equal(t, domain.AIChatEscalated, s.Status)
	assert.NotEmpty(t, s.EscalationReason)
}

func TestAutoEscalationOnTerminalSessionIsNoop(t *testing.T) {
	s := newSession()
	require.NoError(t, s.Complete())
	escalated, err := s.ApplyRiskAnalysis(domain.RiskAnalysis{DoctorRecommended: true})
	require.NoError(t, err)
	assert.False(t, escalated)
	assert.Equal(t, domain.AIChatCompleted, s.Status)
	// the verdict is still recorded
	require.NotNil(t, s.FinalRisk)
}

func TestFeedbackOnlyAfterTerminalState(t *testing.T) {
	s := newSession()
	assert.ErrorIs(t, s.AttachFeedback("great"), domain.ErrFeedbackOnActive)

	require.NoError(t, s.Abandon())
	require.NoError(t, s.AttachFeedback("great"))
	assert.Equal(t, "great", s.Feedback)
}

func TestRoomKeys(t *testing.T) {
	ck := domain.ConsultationRoom("c1")
	assert.Equal(t, domain.RoomKey("consultation:c1"), ck)
	assert.Equal(t, domain.RoomConsultation, ck.Kind())
	assert.Equal(t, "c1", ck.SessionID())

	ak := domain.AIChatRoom("s1")
	assert.Equal(t, domain.RoomKey("ai_chat:s1"), ak)
	assert.Equal(t, domain.RoomAIChat, ak.Kind())
}
