package app_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medilink/telemed/internal/adapters/memory"
	"github.com/medilink/telemed/internal/app"
	"github.com/medilink/telemed/internal/core"
	"github.com/medilink/telemed/internal/domain"
)

// fakeConn records every frame so tests can assert on fan-out.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return core.ErrConnectionClosed
	}
	f.frames = append(f.frames, append(core.Frame(nil), fr...))
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// eventsOf decodes the recorded frames and returns those with the given type.
func (f *fakeConn) eventsOf(t *testing.T, typ string) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, fr := range f.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(fr, &m))
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

type testEnv struct {
	hub      *app.Hub
	identity *memory.Identity
	store    *memory.Store
}

func newTestEnv() *testEnv {
	identity := memory.NewIdentity()
	store := memory.NewStore()
	return &testEnv{
		hub:      app.NewHub(identity, store, store),
		identity: identity,
		store:    store,
	}
}

// connect seeds a token for the user and runs the full handshake.
func (e *testEnv) connect(t *testing.T, u domain.User) (core.ConnectionID, *fakeConn) {
	t.Helper()
	if u.Name == "" {
		u.Name = string(u.ID)
	}
	u.Active = true
	token := "token-" + string(u.ID) + "-" + time.Now().Format("150405.000000000")
	e.identity.AddToken(token, u)
	conn := &fakeConn{}
	cid, _, err := e.hub.Connect(context.Background(), token, conn)
	require.NoError(t, err)
	return cid, conn
}
