// Package postgres implements the persistence collaborator ports over a
// shared Postgres database owned by the main platform backend.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/medilink/telemed/internal/core"
	"github.com/medilink/telemed/internal/domain"
)

// Store wraps database operations for consultations and AI chat sessions.
// The caller is responsible for managing the DB connection lifecycle.
type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{DB: db} }

func Open(url string) (*Store, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewStore(db), nil
}

func (s *Store) LoadConsultation(ctx context.Context, id domain.ConsultationID) (*domain.Consultation, error) {
	var c domain.Consultation
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, patient_id, doctor_id, status, type, scheduled_at
         FROM consultations
         WHERE id = $1`,
		string(id),
	).Scan(&c.ID, &c.PatientID, &c.DoctorID, &c.Status, &c.Type, &c.ScheduledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("consultation %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) SaveConsultationStatus(ctx context.Context, id domain.ConsultationID, status domain.ConsultationStatus) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE consultations SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), string(id),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("consultation %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Store) LoadAIChatSession(ctx context.Context, id domain.AIChatSessionID) (*domain.AIChatSession, error) {
	var (
		sess        domain.AIChatSession
		completedAt sql.NullTime
		reason      sql.NullString
		linked      sql.NullString
		feedback    sql.NullString
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, symptoms, status, message_count, started_at,
                completed_at, escalation_reason, linked_consultation_id, feedback
         FROM ai_chat_sessions
         WHERE id = $1`,
		string(id),
	).Scan(&sess.ID, &sess.UserID, pq.Array(&sess.Symptoms), &sess.Status,
		&sess.MessageCount, &sess.StartedAt, &completedAt, &reason, &linked, &feedback)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ai chat session %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	if completedAt.Valid {
		sess.CompletedAt = &completedAt.Time
	}
	sess.EscalationReason = reason.String
	sess.LinkedConsultationID = domain.ConsultationID(linked.String)
	sess.Feedback = feedback.String

	rows, err := s.DB.QueryContext(ctx,
		`SELECT sender, content, type, sent_at, risk_level, doctor_recommended
         FROM ai_chat_messages
         WHERE session_id = $1
         ORDER BY sent_at ASC`,
		string(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			m           domain.AIChatMessage
			riskLevel   sql.NullString
			recommended sql.NullBool
		)
		if err := rows.Scan(&m.Sender, &m.Content, &m.Type, &m.SentAt, &riskLevel, &recommended); err != nil {
			return nil, err
		}
		if riskLevel.Valid {
			m.Risk = &domain.RiskAnalysis{
				Level:             domain.RiskLevel(riskLevel.String),
				DoctorRecommended: recommended.Bool,
			}
		}
		sess.Messages = append(sess.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) SaveAIChatSession(ctx context.Context, sess *domain.AIChatSession) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE ai_chat_sessions
         SET status = $1, message_count = $2, completed_at = $3,
             escalation_reason = NULLIF($4, ''), linked_consultation_id = NULLIF($5, ''),
             feedback = NULLIF($6, '')
         WHERE id = $7`,
		string(sess.Status), sess.MessageCount, sess.CompletedAt,
		sess.EscalationReason, string(sess.LinkedConsultationID), sess.Feedback,
		string(sess.ID),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("ai chat session %s: %w", sess.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) AppendAIChatMessage(ctx context.Context, id domain.AIChatSessionID, m domain.AIChatMessage) error {
	var (
		riskLevel   sql.NullString
		recommended sql.NullBool
	)
	if m.Risk != nil {
		riskLevel = sql.NullString{String: string(m.Risk.Level), Valid: true}
		recommended = sql.NullBool{Bool: m.Risk.DoctorRecommended, Valid: true}
	}
	// the message row and the counter must commit together
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ai_chat_messages (session_id, sender, content, type, sent_at, risk_level, doctor_recommended)
         VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(id), m.Sender, m.Content, m.Type, m.SentAt, riskLevel, recommended,
	)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE ai_chat_sessions SET message_count = message_count + 1 WHERE id = $1`,
		string(id),
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}
