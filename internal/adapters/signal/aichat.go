package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/medilink/telemed/internal/core"
	"github.com/medilink/telemed/internal/domain"
)

func (ctl *Controller) handleJoinAIChat(ctx context.Context, cid core.ConnectionID, c *wsConn, data []byte) {
	var p struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		ctl.sendJSON(c, map[string]any{"type": "error", "code": "bad_payload", "error": "session_id required"})
		return
	}
	if !ctl.allowJoin(cid, c) {
		return
	}

	sess, err := ctl.Hub.JoinAIChat(ctx, cid, domain.AIChatSessionID(p.SessionID))
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.sendJSON(c, struct {
		Type         string              `json:"type"`
		Room         domain.RoomKey      `json:"room"`
		Status       domain.AIChatStatus `json:"status"`
		MessageCount int                 `json:"message_count"`
	}{"joined", domain.AIChatRoom(sess.ID), sess.Status, sess.MessageCount})
}

func (ctl *Controller) handleAIChatMessage(ctx context.Context, cid core.ConnectionID, c *wsConn, data []byte) {
	var p struct {
		Type        string `json:"type"`
		SessionID   string `json:"session_id"`
		Content     string `json:"content"`
		MessageType string `json:"message_type"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" || p.Content == "" {
		ctl.sendJSON(c, map[string]any{"type": "error", "code": "bad_payload", "error": "session_id and content required"})
		return
	}

	id := domain.AIChatSessionID(p.SessionID)
	if !ctl.Hub.IsMember(domain.AIChatRoom(id), cid) {
		ctl.sendError(c, core.ErrAccessDenied)
		return
	}
	snap, _ := ctl.Hub.Registry.Get(cid)

	sess, err := ctl.Hub.AIChats.Append(ctx, id, domain.AIChatMessage{
		Sender:  "user",
		Content: p.Content,
		Type:    p.MessageType,
	})
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	log.Debug().Str("module", "signal").Str("session", p.SessionID).
		Str("user", string(snap.User.ID)).Int("count", sess.MessageCount).Msg("ai message appended")
	ctl.sendJSON(c, struct {
		Type         string `json:"type"`
		SessionID    string `json:"session_id"`
		MessageCount int    `json:"message_count"`
	}{"ai_message_saved", p.SessionID, sess.MessageCount})
}

// handleAIAnalysisUpdate applies a risk verdict to the session. A verdict
// that requires a doctor auto-escalates and the owner is told explicitly.
func (ctl *Controller) handleAIAnalysisUpdate(ctx context.Context, cid core.ConnectionID, c *wsConn, data []byte) {
	var p struct {
		Type      string              `json:"type"`
		SessionID string              `json:"session_id"`
		Risk      domain.RiskAnalysis `json:"risk"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" || p.Risk.Level == "" {
		ctl.sendJSON(c, map[string]any{"type": "error", "code": "bad_payload", "error": "session_id and risk required"})
		return
	}

	id := domain.AIChatSessionID(p.SessionID)
	if !ctl.Hub.IsMember(domain.AIChatRoom(id), cid) {
		ctl.sendError(c, core.ErrAccessDenied)
		return
	}

	escalated, sess, err := ctl.Hub.AIChats.ApplyRisk(ctx, id, p.Risk)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.sendJSON(c, struct {
		Type      string              `json:"type"`
		SessionID string              `json:"session_id"`
		Status    domain.AIChatStatus `json:"status"`
	}{"analysis_applied", p.SessionID, sess.Status})
	if escalated {
		ctl.Hub.SendToUser(sess.UserID, struct {
			Type      string `json:"type"`
			SessionID string `json:"session_id"`
			Reason    string `json:"reason"`
		}{"ai_session_escalated", p.SessionID, sess.EscalationReason})
	}
}
