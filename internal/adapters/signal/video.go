package signal

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/medilink/telemed/internal/core"
	"github.com/medilink/telemed/internal/domain"
)

// WebRTC negotiation payloads are owned by the client endpoints; the relay
// checks presence and forwards, it never interprets the SDP.

func (ctl *Controller) handleVideoOffer(cid core.ConnectionID, c *wsConn, data []byte) {
	ctl.relaySDP(cid, c, data, "video_offer", webrtc.SDPTypeOffer)
}

func (ctl *Controller) handleVideoAnswer(cid core.ConnectionID, c *wsConn, data []byte) {
	ctl.relaySDP(cid, c, data, "video_answer", webrtc.SDPTypeAnswer)
}

func (ctl *Controller) relaySDP(cid core.ConnectionID, c *wsConn, data []byte, out string, sdpType webrtc.SDPType) {
	var p struct {
		Type string `json:"type"`
		Room string `json:"room"`
		SDP  string `json:"sdp"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" || p.SDP == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad sdp payload")
		ctl.sendJSON(c, map[string]any{"type": "error", "code": "bad_payload", "error": "room and sdp required"})
		return
	}
	snap, ok := ctl.Hub.Registry.Get(cid)
	if !ok {
		return
	}
	desc := webrtc.SessionDescription{Type: sdpType, SDP: p.SDP}
	err := ctl.Hub.RelayToRoom(domain.RoomKey(p.Room), cid, struct {
		Type string                    `json:"type"`
		Room domain.RoomKey            `json:"room"`
		From domain.UserID             `json:"from"`
		SDP  webrtc.SessionDescription `json:"sdp"`
	}{out, domain.RoomKey(p.Room), snap.User.ID, desc})
	if err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleICECandidate(cid core.ConnectionID, c *wsConn, data []byte) {
	var p struct {
		Type          string `json:"type"`
		Room          string `json:"room"`
		Candidate     string `json:"candidate"`
		SDPMid        string `json:"sdpMid"`
		SDPMLineIndex uint16 `json:"sdpMLineIndex"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" || p.Candidate == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		ctl.sendJSON(c, map[string]any{"type": "error", "code": "bad_payload", "error": "room and candidate required"})
		return
	}

	cand := webrtc.ICECandidateInit{Candidate: p.Candidate}
	if p.SDPMid != "" {
		cand.SDPMid = &p.SDPMid
	}
	cand.SDPMLineIndex = &p.SDPMLineIndex

	snap, ok := ctl.Hub.Registry.Get(cid)
	if !ok {
		return
	}
	err := ctl.Hub.RelayToRoom(domain.RoomKey(p.Room), cid, struct {
		Type      string                  `json:"type"`
		Room      domain.RoomKey          `json:"room"`
		From      domain.UserID           `json:"from"`
		Candidate webrtc.ICECandidateInit `json:"candidate"`
	}{"ice_candidate", domain.RoomKey(p.Room), snap.User.ID, cand})
	if err != nil {
		ctl.sendError(c, err)
	}
}

// handleEndCall relays a terminal notification; tearing down media
// pipelines is the clients' responsibility.
func (ctl *Controller) handleEndCall(cid core.ConnectionID, c *wsConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Room string `json:"room"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		ctl.sendJSON(c, map[string]any{"type": "error", "code": "bad_payload", "error": "room required"})
		return
	}
	snap, ok := ctl.Hub.Registry.Get(cid)
	if !ok {
		return
	}
	err := ctl.Hub.RelayToRoom(domain.RoomKey(p.Room), cid, struct {
		Type    string         `json:"type"`
		Room    domain.RoomKey `json:"room"`
		EndedBy domain.UserID  `json:"ended_by"`
	}{"call_ended", domain.RoomKey(p.Room), snap.User.ID})
	if err != nil {
		ctl.sendError(c, err)
	}
}
