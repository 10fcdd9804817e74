package domain

import "strings"

// RoomKey names an ephemeral channel grouping connections for one
// consultation or one AI chat session.
type RoomKey string

type RoomKind string

const (
	RoomConsultation RoomKind = "consultation"
	RoomAIChat       RoomKind = "ai_chat"
)

func ConsultationRoom(id ConsultationID) RoomKey {
	return RoomKey(string(RoomConsultation) + ":" + string(id))
}

func AIChatRoom(id AIChatSessionID) RoomKey {
	return RoomKey(string(RoomAIChat) + ":" + string(id))
}

func (k RoomKey) Kind() RoomKind {
	kind, _, _ := strings.Cut(string(k), ":")
	return RoomKind(kind)
}

// SessionID returns the domain id part of the key.
func (k RoomKey) SessionID() string {
	_, id, _ := strings.Cut(string(k), ":")
	return id
}
