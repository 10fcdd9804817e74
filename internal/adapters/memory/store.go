package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/medilink/telemed/internal/core"
	"github.com/medilink/telemed/internal/domain"
)

// Store implements the consultation and AI chat persistence ports. Loads
// return deep copies so callers mutate their own view until they Save,
// matching how the real collaborator behaves.
type Store struct {
	mu            sync.RWMutex
	consultations map[domain.ConsultationID]domain.Consultation
	sessions      map[domain.AIChatSessionID]domain.AIChatSession
}

func NewStore() *Store {
	return &Store{
		consultations: make(map[domain.ConsultationID]domain.Consultation),
		sessions:      make(map[domain.AIChatSessionID]domain.AIChatSession),
	}
}

func (s *Store) PutConsultation(c domain.Consultation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consultations[c.ID] = c
}

func (s *Store) LoadConsultation(_ context.Context, id domain.ConsultationID) (*domain.Consultation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.consultations[id]
	if !ok {
		return nil, fmt.Errorf("consultation %s: %w", id, core.ErrNotFound)
	}
	out := c
	return &out, nil
}

func (s *Store) SaveConsultationStatus(_ context.Context, id domain.ConsultationID, status domain.ConsultationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consultations[id]
	if !ok {
		return fmt.Errorf("consultation %s: %w", id, core.ErrNotFound)
	}
	c.Status = status
	s.consultations[id] = c
	return nil
}

func (s *Store) PutAIChatSession(sess *domain.AIChatSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = copySession(sess)
}

func (s *Store) LoadAIChatSession(_ context.Context, id domain.AIChatSessionID) (*domain.AIChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("ai chat session %s: %w", id, core.ErrNotFound)
	}
	out := copySession(&sess)
	return &out, nil
}

func (s *Store) SaveAIChatSession(_ context.Context, sess *domain.AIChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return fmt.Errorf("ai chat session %s: %w", sess.ID, core.ErrNotFound)
	}
	s.sessions[sess.ID] = copySession(sess)
	return nil
}

func (s *Store) AppendAIChatMessage(_ context.Context, id domain.AIChatSessionID, m domain.AIChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("ai chat session %s: %w", id, core.ErrNotFound)
	}
	sess.Messages = append(sess.Messages, m)
	sess.MessageCount++
	s.sessions[id] = sess
	return nil
}

func copySession(sess *domain.AIChatSession) domain.AIChatSession {
	out := *sess
	out.Symptoms = append([]string(nil), sess.Symptoms...)
	out.Messages = append([]domain.AIChatMessage(nil), sess.Messages...)
	if sess.FinalRisk != nil {
		risk := *sess.FinalRisk
		out.FinalRisk = &risk
	}
	if sess.CompletedAt != nil {
		at := *sess.CompletedAt
		out.CompletedAt = &at
	}
	return out
}
