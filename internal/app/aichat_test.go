package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medilink/telemed/internal/domain"
)

func TestSessionLifecycleEndToEnd(t *testing.T) {
	e := newTestEnv()
	e.store.PutAIChatSession(domain.NewAIChatSession("s1", "p1", []string{"fever"}))
	ctx := context.Background()
	svc := e.hub.AIChats

	for i := 0; i < domain.MaxAIChatMessages; i++ {
		_, err := svc.Append(ctx, "s1", domain.AIChatMessage{Sender: "user", Content: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	_, err := svc.Append(ctx, "s1", domain.AIChatMessage{Sender: "user", Content: "one too many"})
	assert.ErrorIs(t, err, domain.ErrMessageLimitExceeded)

	sess, err := svc.Complete(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.AIChatCompleted, sess.Status)

	_, err = svc.Append(ctx, "s1", domain.AIChatMessage{Sender: "user", Content: "late"})
	assert.ErrorIs(t, err, domain.ErrMessageLimitExceeded) // cap reached before close

	_, err = svc.Abandon(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// stored copy reflects the terminal state
	stored, err := e.store.LoadAIChatSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.AIChatCompleted, stored.Status)
	assert.Equal(t, domain.MaxAIChatMessages, stored.MessageCount)
}

func TestAppendAfterCloseReportsSessionClosed(t *testing.T) {
	e := newTestEnv()
	e.store.PutAIChatSession(domain.NewAIChatSession("s1", "p1", nil))
	ctx := context.Background()
	svc := e.hub.AIChats

	_, err := svc.Append(ctx, "s1", domain.AIChatMessage{Sender: "user", Content: "hi"})
	require.NoError(t, err)
	_, err = svc.Complete(ctx, "s1")
	require.NoError(t, err)

	_, err = svc.Append(ctx, "s1", domain.AIChatMessage{Sender: "user", Content: "late"})
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestConcurrentEscalationOnlyOneWins(t *testing.T) {
	e := newTestEnv()
	e.store.PutAIChatSession(domain.NewAIChatSession("s1", "p1", nil))
	ctx := context.Background()
	svc := e.hub.AIChats

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Escalate(ctx, "s1", fmt.Sprintf("reason-%d", i), "")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, wins, "exactly one escalation attempt may succeed")
}

func TestManualVsAutoEscalationRace(t *testing.T) {
	e := newTestEnv()
	e.store.PutAIChatSession(domain.NewAIChatSession("s1", "p1", nil))
	ctx := context.Background()
	svc := e.hub.AIChats

	var wg sync.WaitGroup
	var manualErr error
	var autoEscalated bool
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, manualErr = svc.Escalate(ctx, "s1", "patient asked for a doctor", "")
	}()
	go func() {
		defer wg.Done()
		autoEscalated, _, _ = svc.ApplyRisk(ctx, "s1", domain.RiskAnalysis{Level: domain.RiskHigh})
	}()
	wg.Wait()

	// exactly one path escalated; the session never ends up half-transitioned
	manualWon := manualErr == nil
	assert.NotEqual(t, manualWon, autoEscalated, "manual and auto escalation cannot both win")

	stored, err := e.store.LoadAIChatSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.AIChatEscalated, stored.Status)
	assert.NotEmpty(t, stored.EscalationReason)
}

func TestFeedbackAfterEscalation(t *testing.T) {
	e := newTestEnv()
	e.store.PutAIChatSession(domain.NewAIChatSession("s1", "p1", nil))
	ctx := context.Background()
	svc := e.hub.AIChats

	_, err := svc.AttachFeedback(ctx, "s1", "too early")
	assert.ErrorIs(t, err, domain.ErrFeedbackOnActive)

	_, err = svc.Escalate(ctx, "s1", "needs review", "c7")
	require.NoError(t, err)

	sess, err := svc.AttachFeedback(ctx, "s1", "helpful triage")
	require.NoError(t, err)
	assert.Equal(t, "helpful triage", sess.Feedback)
	assert.Equal(t, domain.ConsultationID("c7"), sess.LinkedConsultationID)
}
