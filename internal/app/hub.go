package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medilink/telemed/internal/core"
	"github.com/medilink/telemed/internal/domain"
)

// Hub wires the registry, membership tracker and gate into the operations
// the signaling adapter and the rest of the system call. It owns the
// connect/disconnect cascade and all room fan-out.
type Hub struct {
	Identity      core.Identity
	Consultations core.ConsultationStore
	Registry      *Registry
	Rooms         *Tracker
	Gate          *Gate
	AIChats       *AIChatService
}

func NewHub(identity core.Identity, consultations core.ConsultationStore, aiStore core.AIChatStore) *Hub {
	reg := NewRegistry()
	return &Hub{
		Identity:      identity,
		Consultations: consultations,
		Registry:      reg,
		Rooms:         NewTracker(),
		Gate:          &Gate{Registry: reg, Consultations: consultations, AIChats: aiStore},
		AIChats:       NewAIChatService(aiStore),
	}
}

// Connect authenticates the handshake token and registers the connection.
// Any failure here refuses the connection.
func (h *Hub) Connect(ctx context.Context, token string, sig core.SignalConnection) (core.ConnectionID, *domain.User, error) {
	user, err := h.Identity.VerifyAndLoadUser(ctx, token)
	if err != nil {
		return "", nil, fmt.Errorf("handshake: %w", err)
	}
	if !user.Active {
		return "", nil, fmt.Errorf("handshake: user inactive: %w", core.ErrAuthentication)
	}
	cid := core.ConnectionID(uuid.NewString())
	if err := h.Registry.Register(cid, user, sig); err != nil {
		return "", nil, err
	}
	return cid, user, nil
}

// Disconnect reclaims everything one connection holds: leaves all rooms
// (notifying remaining members) and unregisters. Eviction and explicit
// disconnect both land here.
func (h *Hub) Disconnect(cid core.ConnectionID, reason string) {
	snap, err := h.Registry.Unregister(cid)
	if err != nil {
		return // already gone, racing cleanup paths are fine
	}
	affected := h.Rooms.LeaveAll(cid)
	for _, key := range affected {
		h.relay(key, cid, memberEvent{Type: "member_left", Room: key, User: snap.User, Reason: reason})
	}
	log.Info().Str("module", "app.hub").Str("cid", string(cid)).
		Str("reason", reason).Int("rooms", len(affected)).Msg("connection closed")
}

type memberEvent struct {
	Type   string         `json:"type"`
	Room   domain.RoomKey `json:"room"`
	User   domain.User    `json:"user"`
	Reason string         `json:"reason,omitempty"`
}

// JoinConsultation gate-checks the join, adds the membership and tells the
// other participants.
func (h *Hub) JoinConsultation(ctx context.Context, cid core.ConnectionID, id domain.ConsultationID) (*domain.Consultation, error) {
	c, err := h.Gate.AuthorizeConsultationJoin(ctx, cid, id)
	if err != nil {
		return nil, err
	}
	key := domain.ConsultationRoom(id)
	h.joinRoom(cid, key)
	return c, nil
}

func (h *Hub) JoinAIChat(ctx context.Context, cid core.ConnectionID, id domain.AIChatSessionID) (*domain.AIChatSession, error) {
	s, err := h.Gate.AuthorizeAIChatJoin(ctx, cid, id)
	if err != nil {
		return nil, err
	}
	h.joinRoom(cid, domain.AIChatRoom(id))
	return s, nil
}

func (h *Hub) joinRoom(cid core.ConnectionID, key domain.RoomKey) {
	snap, ok := h.Registry.Get(cid)
	if !ok {
		return
	}
	// One room per kind: joining a new consultation (or AI chat) implies
	// leaving the previous one, so slot and membership stay in agreement.
	if prev, ok := h.Registry.RoomOf(cid, key.Kind()); ok && prev != key {
		h.LeaveRoom(cid, prev)
		log.Info().Str("module", "app.hub").Str("cid", string(cid)).
			Str("from_room", string(prev)).Msg("left previous room on join")
	}
	h.Rooms.Join(key, cid)
	h.Registry.SetRoom(cid, key)
	h.relay(key, cid, memberEvent{Type: "member_joined", Room: key, User: snap.User})
	log.Info().Str("module", "app.hub").Str("cid", string(cid)).Str("room", string(key)).Msg("joined room")
}

func (h *Hub) LeaveRoom(cid core.ConnectionID, key domain.RoomKey) {
	snap, ok := h.Registry.Get(cid)
	h.Rooms.Leave(key, cid)
	h.Registry.ClearRoom(cid, key)
	if ok {
		h.relay(key, cid, memberEvent{Type: "member_left", Room: key, User: snap.User})
	}
}

// IsMember reports whether the connection currently belongs to the room;
// the relay operations require it.
func (h *Hub) IsMember(key domain.RoomKey, cid core.ConnectionID) bool {
	for _, member := range h.Rooms.MembersOf(key) {
		if member == cid {
			return true
		}
	}
	return false
}

// RelayToRoom delivers the payload to every room member except the sender.
// Membership is required; non-members get AccessDenied.
func (h *Hub) RelayToRoom(key domain.RoomKey, from core.ConnectionID, v any) error {
	if !h.IsMember(key, from) {
		return core.ErrAccessDenied
	}
	h.relay(key, from, v)
	return nil
}

// relay is best-effort per recipient: a stale or slow connection never
// aborts delivery to the rest, it is only logged.
func (h *Hub) relay(key domain.RoomKey, exclude core.ConnectionID, v any) {
	frame, err := encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Msg("relay encode")
		return
	}
	sent, dropped := 0, 0
	for _, member := range h.Rooms.MembersOf(key) {
		if member == exclude {
			continue
		}
		snap, ok := h.Registry.Get(member)
		if !ok {
			dropped++
			continue
		}
		if err := snap.Signal.TrySend(frame); err != nil {
			dropped++
			continue
		}
		sent++
	}
	if dropped > 0 {
		log.Warn().Str("module", "app.hub").Str("room", string(key)).
			Int("sent", sent).Int("dropped", dropped).Msg("partial delivery")
	} else {
		log.Debug().Str("module", "app.hub").Str("room", string(key)).Int("sent", sent).Msg("relayed")
	}
}

// UpdateConsultationStatus persists the status change (assigned doctor
// only) and tells the room.
func (h *Hub) UpdateConsultationStatus(ctx context.Context, cid core.ConnectionID, id domain.ConsultationID, status domain.ConsultationStatus) error {
	if _, err := h.Gate.AuthorizeStatusMutation(ctx, cid, id); err != nil {
		return err
	}
	if err := h.Consultations.SaveConsultationStatus(ctx, id, status); err != nil {
		return err
	}
	h.relay(domain.ConsultationRoom(id), cid, struct {
		Type   string                    `json:"type"`
		Room   domain.RoomKey            `json:"room"`
		Status domain.ConsultationStatus `json:"status"`
	}{"status_updated", domain.ConsultationRoom(id), status})
	return nil
}

// SetAvailability flips a doctor's availability and announces it to
// connected patients.
func (h *Hub) SetAvailability(cid core.ConnectionID, available bool) error {
	snap, ok := h.Registry.Get(cid)
	if !ok {
		return core.ErrNotFound
	}
	if snap.User.Role != domain.RoleDoctor {
		return core.ErrAccessDenied
	}
	h.Registry.SetAvailability(cid, available)
	h.SendToRole(domain.RolePatient, struct {
		Type      string        `json:"type"`
		DoctorID  domain.UserID `json:"doctor_id"`
		Available bool          `json:"available"`
	}{"doctor_availability", snap.User.ID, available})
	return nil
}

func (h *Hub) Touch(cid core.ConnectionID) { h.Registry.Touch(cid) }

// SendToConnection delivers directly to one connection.
func (h *Hub) SendToConnection(cid core.ConnectionID, v any) error {
	snap, ok := h.Registry.Get(cid)
	if !ok {
		return core.ErrNotFound
	}
	frame, err := encode(v)
	if err != nil {
		return err
	}
	return snap.Signal.TrySend(frame)
}

// SendToUser delivers to every live connection of one user and reports how
// many accepted it.
func (h *Hub) SendToUser(uid domain.UserID, v any) int {
	return h.deliver(h.Registry.ByUser(uid), v)
}

func (h *Hub) SendToRole(role domain.Role, v any) int {
	return h.deliver(h.Registry.ByRole(role), v)
}

func (h *Hub) BroadcastAnnouncement(v any) int {
	return h.deliver(h.Registry.All(), struct {
		Type    string `json:"type"`
		Payload any    `json:"payload"`
	}{"announcement", v})
}

func (h *Hub) deliver(targets []Snapshot, v any) int {
	frame, err := encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Msg("deliver encode")
		return 0
	}
	sent := 0
	for _, snap := range targets {
		if err := snap.Signal.TrySend(frame); err != nil {
			continue
		}
		sent++
	}
	return sent
}

func (h *Hub) ActiveConnectionCount() int { return h.Registry.Count() }

func (h *Hub) ConnectionCountsByRole() map[domain.Role]int { return h.Registry.CountByRole() }

// Shutdown notifies every connection, then releases all registry and room
// state and closes the transports.
func (h *Hub) Shutdown() {
	all := h.Registry.All()
	frame, err := encode(struct {
		Type  string `json:"type"`
		Event string `json:"event"`
	}{"notification", "server_shutdown"})
	if err == nil {
		for _, snap := range all {
			_ = snap.Signal.TrySend(frame)
		}
	}
	for _, snap := range all {
		h.Rooms.LeaveAll(snap.ID)
		_, _ = h.Registry.Unregister(snap.ID)
		snap.Signal.Close()
	}
	log.Info().Str("module", "app.hub").Int("connections", len(all)).Msg("hub shut down")
}

func encode(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return core.Frame(b), nil
}
