// Package signal is the websocket adapter: it authenticates the handshake,
// pumps frames for one connection on a single consumer loop and dispatches
// inbound events to the hub.
package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/medilink/telemed/internal/app"
	"github.com/medilink/telemed/internal/config"
	"github.com/medilink/telemed/internal/core"
)

const (
	joinLimit  = 10
	joinWindow = time.Minute
)

type Controller struct {
	Hub   *app.Hub
	Cfg   *config.Config
	joins *RoomRateLimiter
}

func NewController(hub *app.Hub, cfg *config.Config) *Controller {
	return &Controller{
		Hub:   hub,
		Cfg:   cfg,
		joins: NewRoomRateLimiter(joinLimit, joinWindow),
	}
}

// wsConn owns the gorilla connection plus a buffered send channel; TrySend
// never blocks the caller, a full buffer is reported as backpressure.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and runs the handshake. A bad credential
// refuses the connection with a close frame; every later error only
// rejects the offending operation.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token, _ = c.Cookie("token")
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.Cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.Cfg.ReadLimit)
	}

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, ctl.Cfg.SendBuffer),
	}

	cid, user, err := ctl.Hub.Connect(ctx, token, conn)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("handshake refused")
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, core.Code(err))
		_ = ws.WriteMessage(websocket.CloseMessage, msg)
		_ = ws.Close()
		return
	}
	log.Info().Str("module", "signal").Str("cid", string(cid)).
		Str("user", string(user.ID)).Msg("connection established")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, cid, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, cid, conn)
	}()
}
