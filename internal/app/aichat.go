package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/medilink/telemed/internal/core"
	"github.com/medilink/telemed/internal/domain"
)

// AIChatService linearizes all mutations of one session behind a
// per-session lock, so two concurrent transition attempts cannot both
// observe an active session. The authoritative copy lives in the store;
// every mutation is a locked read-modify-write.
type AIChatService struct {
	Store core.AIChatStore

	mu    sync.Mutex
	locks map[domain.AIChatSessionID]*sessionLock
}

// sessionLock is reference-counted so entries for terminal sessions can be
// reclaimed without racing a waiter that already holds the pointer.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewAIChatService(store core.AIChatStore) *AIChatService {
	return &AIChatService{
		Store: store,
		locks: make(map[domain.AIChatSessionID]*sessionLock),
	}
}

func (s *AIChatService) acquire(id domain.AIChatSessionID) *sessionLock {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return l
}

// release drops the lock; once a session is terminal and nobody is waiting,
// its entry is removed so the map does not grow with finished sessions.
func (s *AIChatService) release(id domain.AIChatSessionID, l *sessionLock, terminal bool) {
	l.mu.Unlock()

	s.mu.Lock()
	l.refs--
	if l.refs == 0 && terminal {
		delete(s.locks, id)
	}
	s.mu.Unlock()
}

func (s *AIChatService) lockCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

func (s *AIChatService) withSession(ctx context.Context, id domain.AIChatSessionID, fn func(*domain.AIChatSession) error) (*domain.AIChatSession, error) {
	l := s.acquire(id)
	terminal := false
	defer func() { s.release(id, l, terminal) }()

	sess, err := s.Store.LoadAIChatSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		terminal = sess.Status != domain.AIChatActive
		return nil, err
	}
	if err := s.Store.SaveAIChatSession(ctx, sess); err != nil {
		return nil, err
	}
	terminal = sess.Status != domain.AIChatActive
	return sess, nil
}

// Append runs the message-append rules and commits both the message and
// the updated session metadata.
func (s *AIChatService) Append(ctx context.Context, id domain.AIChatSessionID, m domain.AIChatMessage) (*domain.AIChatSession, error) {
	l := s.acquire(id)
	terminal := false
	defer func() { s.release(id, l, terminal) }()

	sess, err := s.Store.LoadAIChatSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sess.AppendMessage(m); err != nil {
		terminal = sess.Status != domain.AIChatActive
		return nil, err
	}
	if err := s.Store.AppendAIChatMessage(ctx, id, sess.Messages[len(sess.Messages)-1]); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *AIChatService) Complete(ctx context.Context, id domain.AIChatSessionID) (*domain.AIChatSession, error) {
	return s.withSession(ctx, id, func(sess *domain.AIChatSession) error {
		return sess.Complete()
	})
}

func (s *AIChatService) Escalate(ctx context.Context, id domain.AIChatSessionID, reason string, linked domain.ConsultationID) (*domain.AIChatSession, error) {
	return s.withSession(ctx, id, func(sess *domain.AIChatSession) error {
		return sess.Escalate(reason, linked)
	})
}

func (s *AIChatService) Abandon(ctx context.Context, id domain.AIChatSessionID) (*domain.AIChatSession, error) {
	return s.withSession(ctx, id, func(sess *domain.AIChatSession) error {
		return sess.Abandon()
	})
}

// ApplyRisk records the final risk analysis and auto-escalates under the
// same lock manual escalation takes, so only one of them can win.
func (s *AIChatService) ApplyRisk(ctx context.Context, id domain.AIChatSessionID, r domain.RiskAnalysis) (escalated bool, sess *domain.AIChatSession, err error) {
	sess, err = s.withSession(ctx, id, func(sess *domain.AIChatSession) error {
		var applyErr error
		escalated, applyErr = sess.ApplyRiskAnalysis(r)
		return applyErr
	})
	if escalated {
		log.Info().Str("module", "app.aichat").Str("session", string(id)).
			Str("level", string(r.Level)).Msg("session auto-escalated")
	}
	return escalated, sess, err
}

func (s *AIChatService) AttachFeedback(ctx context.Context, id domain.AIChatSessionID, feedback string) (*domain.AIChatSession, error) {
	return s.withSession(ctx, id, func(sess *domain.AIChatSession) error {
		return sess.AttachFeedback(feedback)
	})
}
