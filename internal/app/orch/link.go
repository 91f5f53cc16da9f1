package orch

import (
	"sync"

	"github.com/dkeye/Tocata/internal/app"
	"github.com/dkeye/Tocata/internal/core"
	"github.com/dkeye/Tocata/internal/domain"
)

type State int

const (
	StateAnonymous State = iota
	StateAuthenticated
	StateListening
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateListening:
		return "listening"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Link is the router-side view of one connection: its protocol state and,
// once authenticated, the peer it promoted. Transitions hold mu so that a
// concurrent disconnect either sees the registration or prevents it.
type Link struct {
	conn core.Connection

	mu      sync.Mutex
	state   State
	peer    *app.Peer
	session domain.SessionID
}

func (l *Link) Conn() core.Connection { return l.conn }

func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}
