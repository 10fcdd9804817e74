package signal

import (
	"encoding/json"

	"github.com/medilink/telemed/internal/core"
)

func (ctl *Controller) handlePing(c *wsConn) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(c, resp)
}

func (ctl *Controller) handleAvailability(cid core.ConnectionID, c *wsConn, data []byte) {
	var p struct {
		Type      string `json:"type"`
		Available bool   `json:"available"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendJSON(c, map[string]any{"type": "error", "code": "bad_payload", "error": "malformed payload"})
		return
	}
	if err := ctl.Hub.SetAvailability(cid, p.Available); err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.sendJSON(c, map[string]any{"type": "availability_updated", "available": p.Available})
}
