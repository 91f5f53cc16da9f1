package orch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/Tocata/internal/app"
	"github.com/dkeye/Tocata/internal/core"
	"github.com/dkeye/Tocata/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) login(ctx context.Context, l *Link, data core.Frame) {
	if st := l.State(); st != StateAnonymous {
		o.violation(l, "login from "+st.String())
		return
	}
	var req core.LoginRequest
	if err := json.Unmarshal(data, &req); err != nil {
		o.violation(l, "bad login payload")
		return
	}
	log.Info().Str("module", "orch").Str("conn", string(l.conn.ID())).Str("username", req.Username).Msg("login")

	if !o.Limiter.Allow(req.Username) {
		log.Warn().Str("module", "orch").Str("username", req.Username).Msg("login throttled")
		o.replyLogin(l, domain.StatusConnectionFailed)
		return
	}

	vctx, cancel := o.authContext(ctx)
	id, err := o.Auth.Verify(vctx, req.Username, req.Password)
	cancel()
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		log.Warn().Str("module", "orch").Str("username", req.Username).Msg("invalid user")
		o.replyLogin(l, domain.StatusInvalidUser)
		return
	case errors.Is(err, domain.ErrPasswordMismatch):
		log.Warn().Str("module", "orch").Str("username", req.Username).Msg("invalid password")
		o.replyLogin(l, domain.StatusInvalidPassword)
		return
	case err != nil:
		log.Error().Err(err).Str("module", "orch").Str("username", req.Username).Msg("auth gate failure")
		o.replyLogin(l, domain.StatusConnectionFailed)
		return
	}

	sess, created, reaped := o.Sessions.CreateIfAbsent(id.ID, id.Name)
	o.afterReap(reaped)

	peer := &app.Peer{
		ID:          id.ID,
		Name:        id.Name,
		Conn:        l.conn,
		SessionID:   sess.ID,
		ConnectedAt: time.Now(),
	}
	peer.Liveness = app.NewLiveness(o.Liveness, l.conn.Ping, func(reason app.DeathReason) {
		o.Disconnect(l, string(reason))
	})

	l.mu.Lock()
	if l.state != StateAnonymous {
		// Closed or promoted while the gate was consulted.
		l.mu.Unlock()
		return
	}
	// Reply before registering so it precedes any relay addressed to this peer.
	o.sendJSON(l.conn, core.LoginResponse{
		Type:      core.TypeLogin,
		Status:    domain.StatusConnected,
		Sender:    id.ID,
		Name:      id.Name,
		SessionID: sess.ID,
	})
	evicted := o.Peers.Register(peer)
	l.peer = peer
	l.state = StateAuthenticated
	peer.Liveness.Start()
	l.mu.Unlock()

	if evicted != nil {
		log.Info().Str("module", "orch").Str("peer", string(id.ID)).Str("evicted_conn", string(evicted.Conn.ID())).Msg("prior login evicted")
	}
	o.Metrics.Login(domain.StatusConnected.String())
	o.syncGauges()

	actx, cancel := o.auditContext()
	defer cancel()
	if err := o.Auth.RecordConnect(actx, id.ID); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("peer", string(id.ID)).Msg("record connect")
	}
	if o.Presence != nil {
		if created {
			if err := o.Presence.SessionOpened(actx, sess); err != nil {
				log.Error().Err(err).Str("module", "orch").Str("session", string(sess.ID)).Msg("presence session opened")
			}
		}
		if err := o.Presence.PeerJoined(actx, id, sess.ID); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("peer", string(id.ID)).Msg("presence peer joined")
		}
	}
}

func (o *Orchestrator) replyLogin(l *Link, status domain.Status) {
	o.Metrics.Login(status.String())
	o.sendJSON(l.conn, core.LoginResponse{Type: core.TypeLogin, Status: status})
}

func (o *Orchestrator) listen(l *Link, data core.Frame) {
	var req core.ListenRequest
	if err := json.Unmarshal(data, &req); err != nil {
		o.violation(l, "bad listen payload")
		return
	}

	l.mu.Lock()
	if l.state != StateAnonymous {
		st := l.state
		l.mu.Unlock()
		o.violation(l, "listen from "+st.String())
		return
	}
	sess, err := o.Sessions.AttachListener(req.SessionID, l.conn)
	if err != nil {
		l.mu.Unlock()
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(l.conn.ID())).Str("session", string(req.SessionID)).Msg("listen rejected")
		o.Disconnect(l, "unknown_session")
		return
	}
	l.state = StateListening
	l.session = sess.ID
	o.sendJSON(l.conn, core.ListenResponse{
		Type:      core.TypeListen,
		SessionID: sess.ID,
		Name:      sess.Name,
		StartMs:   sess.StartedAt.UnixMilli(),
	})
	l.mu.Unlock()

	o.Metrics.SetListeners(o.Sessions.ListenerCount())
	log.Info().Str("module", "orch").Str("conn", string(l.conn.ID())).Str("session", string(sess.ID)).Msg("listening")
}
