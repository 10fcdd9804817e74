package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/medilink/telemed/internal/core"
	"github.com/medilink/telemed/internal/domain"
)

// Tracker maps room keys to the set of member connections. Rooms are
// created lazily on first join and removed the moment they become empty;
// an empty set is never retained.
type Tracker struct {
	mu    sync.RWMutex
	rooms map[domain.RoomKey]map[core.ConnectionID]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{rooms: make(map[domain.RoomKey]map[core.ConnectionID]struct{})}
}

// Join is idempotent; joining a room twice is a no-op.
func (t *Tracker) Join(key domain.RoomKey, id core.ConnectionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	members, ok := t.rooms[key]
	if !ok {
		members = make(map[core.ConnectionID]struct{})
		t.rooms[key] = members
		log.Debug().Str("module", "app.rooms").Str("room", string(key)).Msg("room created")
	}
	members[id] = struct{}{}
}

// Leave is idempotent; the room is deleted when its last member leaves.
func (t *Tracker) Leave(key domain.RoomKey, id core.ConnectionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.leaveLocked(key, id)
}

func (t *Tracker) leaveLocked(key domain.RoomKey, id core.ConnectionID) {
	members, ok := t.rooms[key]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(t.rooms, key)
		log.Debug().Str("module", "app.rooms").Str("room", string(key)).Msg("room deleted")
	}
}

// MembersOf returns the current membership; empty (not an error) for an
// unknown room.
func (t *Tracker) MembersOf(key domain.RoomKey) []core.ConnectionID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	members, ok := t.rooms[key]
	if !ok {
		return nil
	}
	out := make([]core.ConnectionID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// LeaveAll removes the connection from every room it belongs to in one
// critical section, so a concurrent join for the same connection cannot
// interleave with a disconnect sweep.
func (t *Tracker) LeaveAll(id core.ConnectionID) []domain.RoomKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	var affected []domain.RoomKey
	for key, members := range t.rooms {
		if _, ok := members[id]; ok {
			affected = append(affected, key)
			t.leaveLocked(key, id)
		}
	}
	return affected
}

func (t *Tracker) RoomCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms)
}
