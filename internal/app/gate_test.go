package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medilink/telemed/internal/core"
	"github.com/medilink/telemed/internal/domain"
)

func seedConsultation(e *testEnv, id, patientID, doctorID string) {
	e.store.PutConsultation(domain.Consultation{
		ID:          domain.ConsultationID(id),
		PatientID:   domain.UserID(patientID),
		DoctorID:    domain.UserID(doctorID),
		Status:      domain.ConsultationScheduled,
		Type:        "video",
		ScheduledAt: time.Now(),
	})
}

func TestConsultationJoinAuthorization(t *testing.T) {
	e := newTestEnv()
	seedConsultation(e, "c1", "p1", "d1")

	patientCID, _ := e.connect(t, domain.User{ID: "p1", Role: domain.RolePatient})
	doctorCID, _ := e.connect(t, domain.User{ID: "d1", Role: domain.RoleDoctor})
	adminCID, _ := e.connect(t, domain.User{ID: "adm", Role: domain.RoleAdmin})
	strangerCID, _ := e.connect(t, domain.User{ID: "p2", Role: domain.RolePatient})

	ctx := context.Background()

	_, err := e.hub.Gate.AuthorizeConsultationJoin(ctx, patientCID, "c1")
	assert.NoError(t, err)
	_, err = e.hub.Gate.AuthorizeConsultationJoin(ctx, doctorCID, "c1")
	assert.NoError(t, err)
	_, err = e.hub.Gate.AuthorizeConsultationJoin(ctx, adminCID, "c1")
	assert.NoError(t, err)

	_, err = e.hub.Gate.AuthorizeConsultationJoin(ctx, strangerCID, "c1")
	assert.ErrorIs(t, err, core.ErrAccessDenied)

	_, err = e.hub.Gate.AuthorizeConsultationJoin(ctx, patientCID, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAIChatJoinHasNoAdminOverride(t *testing.T) {
	e := newTestEnv()
	e.store.PutAIChatSession(domain.NewAIChatSession("s1", "p1", nil))

	ownerCID, _ := e.connect(t, domain.User{ID: "p1", Role: domain.RolePatient})
	adminCID, _ := e.connect(t, domain.User{ID: "adm", Role: domain.RoleAdmin})

	ctx := context.Background()

	_, err := e.hub.Gate.AuthorizeAIChatJoin(ctx, ownerCID, "s1")
	assert.NoError(t, err)

	// AI triage sessions are private to the patient who started them.
	_, err = e.hub.Gate.AuthorizeAIChatJoin(ctx, adminCID, "s1")
	assert.ErrorIs(t, err, core.ErrAccessDenied)

	_, err = e.hub.Gate.AuthorizeAIChatJoin(ctx, ownerCID, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStatusMutationRequiresAssignedDoctor(t *testing.T) {
	e := newTestEnv()
	seedConsultation(e, "c1", "p1", "d1")

	doctorCID, _ := e.connect(t, domain.User{ID: "d1", Role: domain.RoleDoctor})
	otherDoctorCID, _ := e.connect(t, domain.User{ID: "d2", Role: domain.RoleDoctor})
	patientCID, _ := e.connect(t, domain.User{ID: "p1", Role: domain.RolePatient})

	ctx := context.Background()

	_, err := e.hub.Gate.AuthorizeStatusMutation(ctx, doctorCID, "c1")
	require.NoError(t, err)

	_, err = e.hub.Gate.AuthorizeStatusMutation(ctx, otherDoctorCID, "c1")
	assert.ErrorIs(t, err, core.ErrAccessDenied)
	_, err = e.hub.Gate.AuthorizeStatusMutation(ctx, patientCID, "c1")
	assert.ErrorIs(t, err, core.ErrAccessDenied)
}
