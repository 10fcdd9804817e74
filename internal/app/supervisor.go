package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Supervisor periodically evicts idle connections. It runs independently of
// inbound traffic and reuses the hub's disconnect cascade, so an evicted
// connection leaves its rooms exactly as an explicit disconnect would.
type Supervisor struct {
	Hub       *Hub
	Interval  time.Duration
	IdleAfter time.Duration
}

func NewSupervisor(hub *Hub, interval, idleAfter time.Duration) *Supervisor {
	return &Supervisor{Hub: hub, Interval: interval, IdleAfter: idleAfter}
}

func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	log.Info().Str("module", "app.supervisor").
		Dur("interval", s.Interval).Dur("idle_after", s.IdleAfter).Msg("supervisor started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.supervisor").Msg("supervisor stopped")
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep evicts every connection idle past the window and returns how many
// it removed.
func (s *Supervisor) Sweep() int {
	cutoff := time.Now().Add(-s.IdleAfter)
	idle := s.Hub.Registry.IdleBefore(cutoff)
	for _, cid := range idle {
		snap, ok := s.Hub.Registry.Get(cid)
		s.Hub.Disconnect(cid, "idle_timeout")
		if ok {
			snap.Signal.Close()
		}
		log.Info().Str("module", "app.supervisor").Str("cid", string(cid)).Msg("evicted idle connection")
	}
	return len(idle)
}
