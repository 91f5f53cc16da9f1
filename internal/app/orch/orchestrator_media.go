package orch

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Tocata/internal/app"
	"github.com/dkeye/Tocata/internal/core"
	"github.com/rs/zerolog/log"
)

// authenticated resolves the peer behind l. A link whose identity was taken
// over by a newer login no longer resolves.
func (o *Orchestrator) authenticated(l *Link) (*app.Peer, bool) {
	if l.State() != StateAuthenticated {
		return nil, false
	}
	return o.Peers.LookupByConnection(l.conn.ID())
}

func (o *Orchestrator) relay(l *Link, data core.Frame) {
	peer, ok := o.authenticated(l)
	if !ok {
		o.violation(l, "relay before login")
		return
	}
	out, dst, err := core.RewriteRelay(data, peer.ID, peer.Name)
	if err != nil {
		o.violation(l, "bad relay payload")
		return
	}
	o.Sessions.Touch(peer.SessionID)

	if dst != "" {
		target, ok := o.Peers.Get(dst)
		if !ok {
			log.Warn().Str("module", "orch").Str("from", string(peer.ID)).Str("dst", string(dst)).Msg("unknown dst peer, dropped")
			o.Metrics.MessageRelayed("dropped")
			return
		}
		log.Debug().Str("module", "orch").Str("from", string(peer.ID)).Str("dst", string(dst)).Msg("unicast")
		o.deliver(target.Conn, out, false)
		o.Metrics.MessageRelayed("unicast")
		return
	}

	targets := o.Peers.ConnectionsExcept(l.conn.ID())
	sent := 0
	for _, c := range targets {
		if o.deliver(c, out, false) {
			sent++
		}
	}
	log.Debug().Str("module", "orch").Str("from", string(peer.ID)).Int("sent_to", sent).Int("targets", len(targets)).Msg("broadcast")
	o.Metrics.MessageRelayed("broadcast")
}

// onFrame is the hot path: the frame is forwarded as-is to every listener
// of the performer's session; the same backing array is shared by all sends.
func (o *Orchestrator) onFrame(l *Link, frame core.Frame) {
	peer, ok := o.authenticated(l)
	if !ok {
		o.violation(l, "binary frame before login")
		return
	}
	listeners, ok := o.Sessions.Fanout(peer.SessionID)
	if !ok {
		return
	}
	sent := 0
	for _, c := range listeners {
		if o.deliver(c, frame, true) {
			sent++
		}
	}
	o.Metrics.FramesRelayed(sent)
}

// deliver enqueues f on c. Failures are the recipient's problem, never the sender's.
func (o *Orchestrator) deliver(c core.Connection, f core.Frame, binary bool) bool {
	var err error
	if binary {
		err = c.TrySendBinary(f)
	} else {
		err = c.TrySend(f)
	}
	if err == nil {
		return true
	}
	if !errors.Is(err, core.ErrBackpressure) {
		log.Debug().Err(err).Str("module", "orch").Str("conn", string(c.ID())).Msg("send failed")
		return false
	}
	o.Metrics.BackpressureDrop()
	action := app.DropFrame
	if o.Policy != nil {
		action = o.Policy.OnBackPressure(c)
	}
	switch action {
	case app.KickMember:
		log.Warn().Str("module", "orch").Str("conn", string(c.ID())).Msg("slow consumer kicked")
		// The adapter's read loop observes the close and runs Disconnect.
		c.Close()
	case app.DropFrame, app.NoAction:
		log.Warn().Str("module", "orch").Str("conn", string(c.ID())).Msg("slow consumer, frame dropped")
	}
	return false
}

func (o *Orchestrator) sendJSON(c core.Connection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("sendJSON marshal")
		return
	}
	o.deliver(c, b, false)
}

func (o *Orchestrator) sendBye(peer *app.Peer) {
	b, err := json.Marshal(core.ByeMessage{Type: core.TypeBye, Sender: peer.ID})
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("bye marshal")
		return
	}
	for _, c := range o.Peers.ConnectionsExcept(peer.Conn.ID()) {
		o.deliver(c, b, false)
	}
}
