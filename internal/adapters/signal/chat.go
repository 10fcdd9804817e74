package signal

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/medilink/telemed/internal/core"
	"github.com/medilink/telemed/internal/domain"
)

// handleSendMessage relays a chat message verbatim to the other room
// members. Persistence of consultation chat is the platform backend's job,
// not the relay's.
func (ctl *Controller) handleSendMessage(cid core.ConnectionID, c *wsConn, data []byte) {
	var p struct {
		Type        string   `json:"type"`
		Room        string   `json:"room"`
		Content     string   `json:"content"`
		MessageType string   `json:"message_type"`
		Attachments []string `json:"attachments,omitempty"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" || p.Content == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad message payload")
		ctl.sendJSON(c, map[string]any{"type": "error", "code": "bad_payload", "error": "room and content required"})
		return
	}

	snap, ok := ctl.Hub.Registry.Get(cid)
	if !ok {
		return
	}
	err := ctl.Hub.RelayToRoom(domain.RoomKey(p.Room), cid, struct {
		Type        string         `json:"type"`
		Room        domain.RoomKey `json:"room"`
		Sender      domain.User    `json:"sender"`
		Content     string         `json:"content"`
		MessageType string         `json:"message_type,omitempty"`
		Attachments []string       `json:"attachments,omitempty"`
		SentAt      time.Time      `json:"sent_at"`
	}{"new_message", domain.RoomKey(p.Room), snap.User, p.Content, p.MessageType, p.Attachments, time.Now()})
	if err != nil {
		ctl.sendError(c, err)
	}
}

// Typing indicators are fire-and-forget; a failed relay is not reported.
func (ctl *Controller) handleTyping(cid core.ConnectionID, c *wsConn, data []byte, typing bool) {
	var p struct {
		Type string `json:"type"`
		Room string `json:"room"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		return
	}
	snap, ok := ctl.Hub.Registry.Get(cid)
	if !ok {
		return
	}
	_ = ctl.Hub.RelayToRoom(domain.RoomKey(p.Room), cid, struct {
		Type   string         `json:"type"`
		Room   domain.RoomKey `json:"room"`
		UserID domain.UserID  `json:"user_id"`
		Typing bool           `json:"typing"`
	}{"typing", domain.RoomKey(p.Room), snap.User.ID, typing})
}
