// Package memory provides in-memory implementations of the external
// collaborator ports, used in tests and local development.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/medilink/telemed/internal/core"
	"github.com/medilink/telemed/internal/domain"
)

type Identity struct {
	mu    sync.RWMutex
	users map[string]domain.User // token -> user
}

func NewIdentity() *Identity {
	return &Identity{users: make(map[string]domain.User)}
}

func (i *Identity) AddToken(token string, u domain.User) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.users[token] = u
}

func (i *Identity) VerifyAndLoadUser(_ context.Context, token string) (*domain.User, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	u, ok := i.users[token]
	if !ok {
		return nil, fmt.Errorf("unknown token: %w", core.ErrAuthentication)
	}
	out := u
	return &out, nil
}
