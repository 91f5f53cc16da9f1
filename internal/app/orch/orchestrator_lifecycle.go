package orch

import (
	"github.com/dkeye/Tocata/internal/core"
	"github.com/rs/zerolog/log"
)

// Accept starts tracking a freshly opened connection in the Anonymous state.
func (o *Orchestrator) Accept(conn core.Connection) *Link {
	log.Info().Str("module", "orch").Str("conn", string(conn.ID())).Msg("connection accepted")
	return &Link{conn: conn, state: StateAnonymous}
}

// Pong handles a transport-level pong.
func (o *Orchestrator) Pong(l *Link) {
	peer, ok := o.authenticated(l)
	if !ok {
		return
	}
	peer.Liveness.Pong()
	o.Sessions.Touch(peer.SessionID)
}

func (o *Orchestrator) violation(l *Link, why string) {
	log.Warn().Str("module", "orch").Str("conn", string(l.conn.ID())).Str("state", l.State().String()).Str("why", why).Msg("protocol violation")
	o.Disconnect(l, "protocol_violation")
}

// Disconnect tears l down from whatever state it is in. Only the first call
// does anything; timers are cancelled before the peer is dropped.
func (o *Orchestrator) Disconnect(l *Link, reason string) {
	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return
	}
	peer := l.peer
	l.state = StateClosed
	l.mu.Unlock()

	if peer != nil {
		peer.Liveness.Stop()
	}
	o.Sessions.DetachListener(l.conn.ID())
	l.conn.Close()
	o.Metrics.Disconnected(reason)

	if peer == nil {
		o.syncGauges()
		log.Info().Str("module", "orch").Str("conn", string(l.conn.ID())).Str("reason", reason).Msg("disconnected")
		return
	}
	if _, ok := o.Peers.RemoveConnection(l.conn.ID()); !ok {
		// A newer login owns the identity; nothing to announce.
		o.syncGauges()
		log.Info().Str("module", "orch").Str("conn", string(l.conn.ID())).Str("peer", string(peer.ID)).Str("reason", reason).Msg("evicted connection closed")
		return
	}
	o.syncGauges()
	log.Info().Str("module", "orch").Str("peer", string(peer.ID)).Str("reason", reason).Msg("peer disconnected")

	o.sendBye(peer)

	ctx, cancel := o.auditContext()
	defer cancel()
	if err := o.Auth.RecordDisconnect(ctx, peer.ID); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("peer", string(peer.ID)).Msg("record disconnect")
	}
	if o.Presence != nil {
		if err := o.Presence.PeerLeft(ctx, peer.ID); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("peer", string(peer.ID)).Msg("presence peer left")
		}
	}
}
