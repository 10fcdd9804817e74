package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/medilink/telemed/internal/core"
	"github.com/medilink/telemed/internal/domain"
)

type connEntry struct {
	user        *domain.User
	signal      core.SignalConnection
	connectedAt time.Time
	lastActive  time.Time

	// A connection holds at most one consultation room and one AI chat
	// room at a time; either slot may be empty.
	consultRoom domain.RoomKey
	aiRoom      domain.RoomKey

	available bool // doctor availability toggle
}

// Snapshot is the read-only view the registry hands out; no entry pointers
// ever leave the lock.
type Snapshot struct {
	ID     core.ConnectionID
	User   domain.User
	Signal core.SignalConnection
}

// Registry maps live connection ids to authenticated-user metadata and
// activity timestamps. Mutated from inbound events, disconnects and the
// cleanup supervisor, all through these accessors.
type Registry struct {
	mu    sync.RWMutex
	conns map[core.ConnectionID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[core.ConnectionID]*connEntry)}
}

func (r *Registry) Register(id core.ConnectionID, user *domain.User, sig core.SignalConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; ok {
		return core.ErrDuplicateConnection
	}
	now := time.Now()
	r.conns[id] = &connEntry{
		user:        user,
		signal:      sig,
		connectedAt: now,
		lastActive:  now,
	}
	log.Info().Str("module", "app.registry").Str("cid", string(id)).
		Str("user", string(user.ID)).Str("role", string(user.Role)).Msg("registered connection")
	return nil
}

// Touch refreshes the activity timestamp. A missing id is not an error:
// the connection may already have raced with eviction.
func (r *Registry) Touch(id core.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		e.lastActive = time.Now()
	}
}

func (r *Registry) Unregister(id core.ConnectionID) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return Snapshot{}, core.ErrNotFound
	}
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("cid", string(id)).Msg("unregistered connection")
	return Snapshot{ID: id, User: *e.user, Signal: e.signal}, nil
}

func (r *Registry) Get(id core.ConnectionID) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{ID: id, User: *e.user, Signal: e.signal}, true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) CountByRole() map[domain.Role]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domain.Role]int, 3)
	for _, e := range r.conns {
		out[e.user.Role]++
	}
	return out
}

// SetRoom stores the room in the slot matching its kind.
func (r *Registry) SetRoom(id core.ConnectionID, key domain.RoomKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return
	}
	switch key.Kind() {
	case domain.RoomConsultation:
		e.consultRoom = key
	case domain.RoomAIChat:
		e.aiRoom = key
	}
}

// RoomOf returns the room currently held in the slot for the given kind.
func (r *Registry) RoomOf(id core.ConnectionID, kind domain.RoomKind) (domain.RoomKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return "", false
	}
	switch kind {
	case domain.RoomConsultation:
		if e.consultRoom != "" {
			return e.consultRoom, true
		}
	case domain.RoomAIChat:
		if e.aiRoom != "" {
			return e.aiRoom, true
		}
	}
	return "", false
}

func (r *Registry) ClearRoom(id core.ConnectionID, key domain.RoomKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return
	}
	if e.consultRoom == key {
		e.consultRoom = ""
	}
	if e.aiRoom == key {
		e.aiRoom = ""
	}
}

func (r *Registry) RoomsOf(id core.ConnectionID) []domain.RoomKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return nil
	}
	out := make([]domain.RoomKey, 0, 2)
	if e.consultRoom != "" {
		out = append(out, e.consultRoom)
	}
	if e.aiRoom != "" {
		out = append(out, e.aiRoom)
	}
	return out
}

func (r *Registry) ByUser(uid domain.UserID) []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Snapshot
	for id, e := range r.conns {
		if e.user.ID == uid {
			out = append(out, Snapshot{ID: id, User: *e.user, Signal: e.signal})
		}
	}
	return out
}

func (r *Registry) ByRole(role domain.Role) []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Snapshot
	for id, e := range r.conns {
		if e.user.Role == role {
			out = append(out, Snapshot{ID: id, User: *e.user, Signal: e.signal})
		}
	}
	return out
}

func (r *Registry) All() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.conns))
	for id, e := range r.conns {
		out = append(out, Snapshot{ID: id, User: *e.user, Signal: e.signal})
	}
	return out
}

// IdleBefore returns connections whose last activity predates the cutoff;
// used by the cleanup supervisor.
func (r *Registry) IdleBefore(cutoff time.Time) []core.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.ConnectionID
	for id, e := range r.conns {
		if e.lastActive.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out
}

// SetAvailability flips the doctor-availability flag and reports the user
// it belongs to.
func (r *Registry) SetAvailability(id core.ConnectionID, available bool) (domain.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return domain.User{}, false
	}
	e.available = available
	return *e.user, true
}
