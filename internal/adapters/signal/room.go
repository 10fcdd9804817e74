package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/medilink/telemed/internal/core"
	"github.com/medilink/telemed/internal/domain"
)

func (ctl *Controller) handleJoinConsultation(ctx context.Context, cid core.ConnectionID, c *wsConn, data []byte) {
	var p struct {
		Type           string `json:"type"`
		ConsultationID string `json:"consultation_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ConsultationID == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendJSON(c, map[string]any{"type": "error", "code": "bad_payload", "error": "consultation_id required"})
		return
	}
	if !ctl.allowJoin(cid, c) {
		return
	}

	consultation, err := ctl.Hub.JoinConsultation(ctx, cid, domain.ConsultationID(p.ConsultationID))
	if err != nil {
		ctl.sendError(c, err)
		return
	}

	key := domain.ConsultationRoom(consultation.ID)
	ctl.sendJSON(c, struct {
		Type    string              `json:"type"`
		Room    domain.RoomKey      `json:"room"`
		Status  string              `json:"status"`
		Members []core.ConnectionID `json:"members"`
	}{"joined", key, string(consultation.Status), ctl.Hub.Rooms.MembersOf(key)})
}

// allowJoin applies the per-user join throttle; a throttled request is
// rejected like any other failed operation, the connection stays alive.
func (ctl *Controller) allowJoin(cid core.ConnectionID, c *wsConn) bool {
	snap, ok := ctl.Hub.Registry.Get(cid)
	if !ok {
		return false
	}
	if !ctl.joins.Allow(snap.User.ID) {
		log.Warn().Str("module", "signal").Str("user", string(snap.User.ID)).Msg("join throttled")
		ctl.sendJSON(c, map[string]any{"type": "error", "code": "rate_limited", "error": "too many join attempts"})
		return false
	}
	return true
}

func (ctl *Controller) handleLeaveConsultation(cid core.ConnectionID, c *wsConn, data []byte) {
	var p struct {
		Type           string `json:"type"`
		ConsultationID string `json:"consultation_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ConsultationID == "" {
		ctl.sendJSON(c, map[string]any{"type": "error", "code": "bad_payload", "error": "consultation_id required"})
		return
	}
	key := domain.ConsultationRoom(domain.ConsultationID(p.ConsultationID))
	ctl.Hub.LeaveRoom(cid, key)
	ctl.sendJSON(c, map[string]any{"type": "left", "room": key})
}

func (ctl *Controller) handleStatusUpdate(ctx context.Context, cid core.ConnectionID, c *wsConn, data []byte) {
	var p struct {
		Type           string `json:"type"`
		ConsultationID string `json:"consultation_id"`
		Status         string `json:"status"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ConsultationID == "" || p.Status == "" {
		ctl.sendJSON(c, map[string]any{"type": "error", "code": "bad_payload", "error": "consultation_id and status required"})
		return
	}
	err := ctl.Hub.UpdateConsultationStatus(ctx, cid,
		domain.ConsultationID(p.ConsultationID), domain.ConsultationStatus(p.Status))
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.sendJSON(c, map[string]any{"type": "status_updated", "consultation_id": p.ConsultationID, "status": p.Status})
}
