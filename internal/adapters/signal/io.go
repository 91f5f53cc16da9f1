package signal

import (
	"context"
	"time"

	"github.com/dkeye/Tocata/internal/app/orch"
	"github.com/dkeye/Tocata/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *JamWSController) writePump(ctx context.Context, c *WsConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(c.id)).Msg("writePump ctx done")
			c.Close()
			return
		case msg, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("conn", string(c.id)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(msg.kind, msg.data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("writePump write error")
				c.Close()
				return
			}
		}
	}
}

// readPump owns the connection's lifetime: whatever ends the read loop
// (peer close, kick, shutdown, read limit) runs Disconnect exactly here.
func (ctl *JamWSController) readPump(ctx context.Context, l *orch.Link, c *WsConn) {
	reason := "closed"
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(c.id)).Str("reason", reason).Msg("readPump closing")
		ctl.Orch.Disconnect(l, reason)
	}()

	c.conn.SetPongHandler(func(string) error {
		ctl.Orch.Pong(l)
		return nil
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				reason = "shutdown"
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("readPump read error")
			}
			return
		}
		in := core.Inbound{Data: data}
		switch kind {
		case websocket.TextMessage:
			in.Kind = core.TextMessage
		case websocket.BinaryMessage:
			in.Kind = core.BinaryMessage
		}
		ctl.Orch.Handle(ctx, l, in)
	}
}
