package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/medilink/telemed/internal/core"
	"github.com/medilink/telemed/internal/domain"
)

// Gate authorizes join and mutation requests against the owning domain
// record. Lookups go to the persistence collaborator and only suspend the
// calling operation; nothing here holds a lock across a lookup.
type Gate struct {
	Registry      *Registry
	Consultations core.ConsultationStore
	AIChats       core.AIChatStore
}

// AuthorizeConsultationJoin allows the consultation's patient, its doctor,
// or an admin. Returns the loaded record on success.
func (g *Gate) AuthorizeConsultationJoin(ctx context.Context, cid core.ConnectionID, consultationID domain.ConsultationID) (*domain.Consultation, error) {
	snap, ok := g.Registry.Get(cid)
	if !ok {
		return nil, fmt.Errorf("connection %s: %w", cid, core.ErrNotFound)
	}
	c, err := g.Consultations.LoadConsultation(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if snap.User.Role == domain.RoleAdmin || c.IsParticipant(snap.User.ID) {
		return c, nil
	}
	log.Warn().Str("module", "app.gate").Str("cid", string(cid)).
		Str("consultation", string(consultationID)).Msg("consultation join denied")
	return nil, core.ErrAccessDenied
}

// AuthorizeAIChatJoin allows only the session owner. AI triage sessions are
// private to the patient who started them; there is no admin override.
func (g *Gate) AuthorizeAIChatJoin(ctx context.Context, cid core.ConnectionID, sessionID domain.AIChatSessionID) (*domain.AIChatSession, error) {
	snap, ok := g.Registry.Get(cid)
	if !ok {
		return nil, fmt.Errorf("connection %s: %w", cid, core.ErrNotFound)
	}
	s, err := g.AIChats.LoadAIChatSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.UserID != snap.User.ID {
		log.Warn().Str("module", "app.gate").Str("cid", string(cid)).
			Str("session", string(sessionID)).Msg("ai chat join denied")
		return nil, core.ErrAccessDenied
	}
	return s, nil
}

// AuthorizeStatusMutation allows only the assigned doctor.
func (g *Gate) AuthorizeStatusMutation(ctx context.Context, cid core.ConnectionID, consultationID domain.ConsultationID) (*domain.Consultation, error) {
	snap, ok := g.Registry.Get(cid)
	if !ok {
		return nil, fmt.Errorf("connection %s: %w", cid, core.ErrNotFound)
	}
	c, err := g.Consultations.LoadConsultation(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if snap.User.Role != domain.RoleDoctor || c.DoctorID != snap.User.ID {
		return nil, core.ErrAccessDenied
	}
	return c, nil
}
