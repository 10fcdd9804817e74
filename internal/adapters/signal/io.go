package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/medilink/telemed/internal/core"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, cid core.ConnectionID, c *wsConn) {
	pingPeriod := ctl.Cfg.PingPeriod
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump is the single consumer loop for one connection; handling events
// in-line preserves per-sender ordering.
func (ctl *Controller) readPump(ctx context.Context, cid core.ConnectionID, c *wsConn) {
	defer func() {
		ctl.Hub.Disconnect(cid, "disconnected")
		c.Close()
		log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("readPump closed")
	}()

	c.conn.SetPongHandler(func(string) error {
		ctl.Hub.Touch(cid)
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			ctl.handleEvent(ctx, cid, c, data)
		}
	}
}

func (ctl *Controller) handleEvent(ctx context.Context, cid core.ConnectionID, c *wsConn, data []byte) {
	ctl.Hub.Touch(cid)

	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendJSON(c, map[string]any{"type": "error", "code": "bad_payload", "error": "malformed event"})
		return
	}

	switch env.Type {
	case "join_consultation":
		ctl.handleJoinConsultation(ctx, cid, c, data)
	case "leave_consultation":
		ctl.handleLeaveConsultation(cid, c, data)
	case "consultation_status_update":
		ctl.handleStatusUpdate(ctx, cid, c, data)
	case "send_message":
		ctl.handleSendMessage(cid, c, data)
	case "typing_start":
		ctl.handleTyping(cid, c, data, true)
	case "typing_stop":
		ctl.handleTyping(cid, c, data, false)
	case "video_offer":
		ctl.handleVideoOffer(cid, c, data)
	case "video_answer":
		ctl.handleVideoAnswer(cid, c, data)
	case "ice_candidate":
		ctl.handleICECandidate(cid, c, data)
	case "end_video_call":
		ctl.handleEndCall(cid, c, data)
	case "join_ai_chat":
		ctl.handleJoinAIChat(ctx, cid, c, data)
	case "ai_chat_message":
		ctl.handleAIChatMessage(ctx, cid, c, data)
	case "ai_analysis_update":
		ctl.handleAIAnalysisUpdate(ctx, cid, c, data)
	case "update_availability":
		ctl.handleAvailability(cid, c, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event")
	}
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

// sendError reports a failed operation back to the originating connection;
// the connection itself stays alive.
func (ctl *Controller) sendError(c *wsConn, err error) {
	ctl.sendJSON(c, map[string]any{
		"type":  "error",
		"code":  core.Code(err),
		"error": err.Error(),
	})
}
