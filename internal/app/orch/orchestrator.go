package orch

import (
	"context"
	"time"

	"github.com/dkeye/Tocata/internal/app"
	"github.com/dkeye/Tocata/internal/core"
	"github.com/dkeye/Tocata/internal/domain"
	"github.com/dkeye/Tocata/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	defaultAuditTimeout = 2 * time.Second
	defaultAuthTimeout  = 5 * time.Second
)

// AuthGate verifies credentials against the user directory and records
// connection audit timestamps. Verify returns domain.ErrUserNotFound or
// domain.ErrPasswordMismatch for the two reportable failures.
type AuthGate interface {
	Verify(ctx context.Context, username, password string) (domain.Identity, error)
	RecordConnect(ctx context.Context, id domain.PeerID) error
	RecordDisconnect(ctx context.Context, id domain.PeerID) error
}

// Presence mirrors broker state to an external store. Best effort.
type Presence interface {
	PeerJoined(ctx context.Context, id domain.Identity, sid domain.SessionID) error
	PeerLeft(ctx context.Context, id domain.PeerID) error
	SessionOpened(ctx context.Context, s domain.Session) error
	SessionClosed(ctx context.Context, sid domain.SessionID) error
}

// Orchestrator is the message router: it owns no transport, only the
// registries, and drives every connection through its protocol states.
type Orchestrator struct {
	Peers    *app.PeerRegistry
	Sessions *app.SessionRegistry
	Auth     AuthGate
	Policy   app.Policy
	Limiter  *app.RateLimiter
	Presence Presence
	Metrics  *metrics.Metrics
	Liveness app.LivenessConfig

	AuditTimeout time.Duration
	AuthTimeout  time.Duration
}

// Handle dispatches one inbound message. Binary frames are never parsed;
// text frames never reach listener fan-out.
func (o *Orchestrator) Handle(ctx context.Context, l *Link, in core.Inbound) {
	switch in.Kind {
	case core.BinaryMessage:
		o.onFrame(l, in.Data)
		return
	case core.TextMessage:
	default:
		o.violation(l, "unknown frame kind")
		return
	}

	typ, err := core.PeekType(in.Data)
	if err != nil {
		o.violation(l, "bad json")
		return
	}
	switch typ {
	case core.TypeLogin:
		o.login(ctx, l, in.Data)
	case core.TypeListen:
		o.listen(l, in.Data)
	default:
		o.relay(l, in.Data)
	}
}

// Reap runs the session eviction sweep outside of a login.
func (o *Orchestrator) Reap() int {
	reaped := o.Sessions.Reap()
	o.afterReap(reaped)
	return len(reaped)
}

func (o *Orchestrator) afterReap(reaped []domain.Session) {
	if len(reaped) == 0 {
		return
	}
	o.Metrics.SessionsReaped(len(reaped))
	o.syncGauges()
	if o.Presence == nil {
		return
	}
	ctx, cancel := o.auditContext()
	defer cancel()
	for _, s := range reaped {
		if err := o.Presence.SessionClosed(ctx, s.ID); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("session", string(s.ID)).Msg("presence session closed")
		}
	}
}

func (o *Orchestrator) syncGauges() {
	o.Metrics.SetPeers(o.Peers.Count())
	o.Metrics.SetSessions(o.Sessions.Count())
	o.Metrics.SetListeners(o.Sessions.ListenerCount())
}

// authContext bounds a credential check so a stalled directory yields
// ConnectionFailed instead of parking the connection's read loop.
func (o *Orchestrator) authContext(ctx context.Context) (context.Context, context.CancelFunc) {
	d := o.AuthTimeout
	if d <= 0 {
		d = defaultAuthTimeout
	}
	return context.WithTimeout(ctx, d)
}

func (o *Orchestrator) auditContext() (context.Context, context.CancelFunc) {
	d := o.AuditTimeout
	if d <= 0 {
		d = defaultAuditTimeout
	}
	return context.WithTimeout(context.Background(), d)
}
