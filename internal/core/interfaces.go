package core

import (
	"context"

	"github.com/medilink/telemed/internal/domain"
)

// Frame is an encoded wire payload.
type Frame []byte

// ConnectionID identifies one live network session; opaque, unique per
// connection, unrelated to the user id behind it.
type ConnectionID string

// SignalConnection abstracts the messaging transport for one connection.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Identity is the external identity collaborator, consulted once per
// connection at handshake.
type Identity interface {
	VerifyAndLoadUser(ctx context.Context, token string) (*domain.User, error)
}

// ConsultationStore is the slice of the persistence collaborator the gate
// and relay need for consultations.
type ConsultationStore interface {
	LoadConsultation(ctx context.Context, id domain.ConsultationID) (*domain.Consultation, error)
	SaveConsultationStatus(ctx context.Context, id domain.ConsultationID, status domain.ConsultationStatus) error
}

// AIChatStore is the persistence collaborator for AI chat sessions. Load
// must return an independent copy; the service commits mutations with Save.
type AIChatStore interface {
	LoadAIChatSession(ctx context.Context, id domain.AIChatSessionID) (*domain.AIChatSession, error)
	SaveAIChatSession(ctx context.Context, s *domain.AIChatSession) error
	AppendAIChatMessage(ctx context.Context, id domain.AIChatSessionID, m domain.AIChatMessage) error
}
