package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Tocata/internal/app/orch"
	"github.com/dkeye/Tocata/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	DefaultReadLimit    = 64 << 10
	DefaultSendBuffer   = 256
	DefaultWriteTimeout = 5 * time.Second
)

type Options struct {
	ReadLimit    int64
	SendBuffer   int
	WriteTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = DefaultReadLimit
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = DefaultSendBuffer
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	return o
}

type JamWSController struct {
	Orch *orch.Orchestrator
	opts Options
}

func NewJamWSController(o *orch.Orchestrator, opts Options) *JamWSController {
	return &JamWSController{Orch: o, opts: opts.withDefaults()}
}

type outbound struct {
	kind int
	data core.Frame
}

// WsConn is a core.Connection over gorilla/websocket. Only writePump writes
// data frames; pings go through WriteControl, which is safe alongside it.
type WsConn struct {
	id           core.ConnID
	conn         *websocket.Conn
	send         chan outbound
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) ID() core.ConnID { return c.id }

func (c *WsConn) TrySend(f core.Frame) error {
	return c.enqueue(websocket.TextMessage, f)
}

func (c *WsConn) TrySendBinary(f core.Frame) error {
	return c.enqueue(websocket.BinaryMessage, f)
}

func (c *WsConn) enqueue(kind int, f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- outbound{kind: kind, data: f}:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsConn) Ping() error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return core.ErrConnClosed
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.writeTimeout))
	_ = c.conn.Close()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *JamWSController) HandleJam(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.opts.ReadLimit)

	conn := &WsConn{
		id:           core.ConnID(uuid.NewString()),
		conn:         ws,
		send:         make(chan outbound, ctl.opts.SendBuffer),
		writeTimeout: ctl.opts.WriteTimeout,
	}
	log.Info().Str("module", "signal").Str("conn", string(conn.id)).Str("remote", c.Request.RemoteAddr).Msg("new WS connection")

	link := ctl.Orch.Accept(conn)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, link, conn)
}
