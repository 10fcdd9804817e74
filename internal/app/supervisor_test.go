package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medilink/telemed/internal/app"
	"github.com/medilink/telemed/internal/core"
	"github.com/medilink/telemed/internal/domain"
)

func TestSweepEvictsIdleConnections(t *testing.T) {
	e := newTestEnv()
	seedConsultation(e, "c1", "p1", "d1")

	idleCID, idleConn := e.connect(t, domain.User{ID: "p1", Role: domain.RolePatient})
	activeCID, activeConn := e.connect(t, domain.User{ID: "d1", Role: domain.RoleDoctor})

	ctx := context.Background()
	_, err := e.hub.JoinConsultation(ctx, idleCID, "c1")
	require.NoError(t, err)
	_, err = e.hub.JoinConsultation(ctx, activeCID, "c1")
	require.NoError(t, err)

	sup := app.NewSupervisor(e.hub, time.Minute, 20*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	e.hub.Touch(activeCID)

	evicted := sup.Sweep()
	assert.Equal(t, 1, evicted)

	// the idle connection is gone and its memberships reclaimed
	_, ok := e.hub.Registry.Get(idleCID)
	assert.False(t, ok)
	assert.Equal(t, []core.ConnectionID{activeCID}, e.hub.Rooms.MembersOf(domain.ConsultationRoom("c1")))
	assert.ErrorIs(t, idleConn.TrySend(core.Frame(`{}`)), core.ErrConnectionClosed)

	// the remaining member is told the user left
	left := activeConn.eventsOf(t, "member_left")
	require.Len(t, left, 1)
	assert.Equal(t, "idle_timeout", left[0]["reason"])

	// a second sweep finds nothing new to evict
	e.hub.Touch(activeCID)
	assert.Equal(t, 0, sup.Sweep())
}

func TestSupervisorStopsOnContextCancel(t *testing.T) {
	e := newTestEnv()
	sup := app.NewSupervisor(e.hub, 5*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop")
	}
}
