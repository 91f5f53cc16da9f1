package app

import (
	"sync"
	"time"

	"github.com/dkeye/Tocata/internal/core"
	"github.com/dkeye/Tocata/internal/domain"
	"github.com/rs/zerolog/log"
)

// Peer is one authenticated identity bound to exactly one live connection.
type Peer struct {
	ID          domain.PeerID
	Name        string
	Conn        core.Connection
	SessionID   domain.SessionID
	ConnectedAt time.Time
	Liveness    *Liveness
}

// PeerRegistry maps identities to peers. byConn is a secondary index kept
// in step with byID under the same lock so connection lookups stay O(1).
type PeerRegistry struct {
	mu     sync.RWMutex
	byID   map[domain.PeerID]*Peer
	byConn map[core.ConnID]domain.PeerID
}

func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{
		byID:   make(map[domain.PeerID]*Peer),
		byConn: make(map[core.ConnID]domain.PeerID),
	}
}

// Register inserts p, replacing any peer already holding the same id.
// The replaced peer is returned; its connection is left untouched.
func (r *PeerRegistry) Register(p *Peer) *Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.byID[p.ID]
	if ok {
		delete(r.byConn, prev.Conn.ID())
	}
	r.byID[p.ID] = p
	r.byConn[p.Conn.ID()] = p.ID
	if ok {
		log.Info().Str("module", "app.peers").Str("peer", string(p.ID)).Str("conn", string(p.Conn.ID())).Str("evicted_conn", string(prev.Conn.ID())).Msg("peer replaced")
		return prev
	}
	log.Info().Str("module", "app.peers").Str("peer", string(p.ID)).Str("conn", string(p.Conn.ID())).Msg("peer registered")
	return nil
}

func (r *PeerRegistry) LookupByConnection(cid core.ConnID) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byConn[cid]
	if !ok {
		return nil, false
	}
	p, ok := r.byID[id]
	return p, ok
}

func (r *PeerRegistry) Get(id domain.PeerID) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	return p, ok
}

func (r *PeerRegistry) Remove(id domain.PeerID) (*Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	delete(r.byConn, p.Conn.ID())
	log.Info().Str("module", "app.peers").Str("peer", string(id)).Msg("peer removed")
	return p, true
}

// RemoveConnection removes the peer bound to cid, if any. A connection whose
// identity has since been taken over by a newer login removes nothing.
func (r *PeerRegistry) RemoveConnection(cid core.ConnID) (*Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byConn[cid]
	if !ok {
		return nil, false
	}
	p := r.byID[id]
	delete(r.byConn, cid)
	delete(r.byID, id)
	log.Info().Str("module", "app.peers").Str("peer", string(id)).Str("conn", string(cid)).Msg("peer removed")
	return p, true
}

// ConnectionsExcept snapshots every registered connection but skip.
func (r *PeerRegistry) ConnectionsExcept(skip core.ConnID) []core.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Connection, 0, len(r.byID))
	for _, p := range r.byID {
		if p.Conn.ID() == skip {
			continue
		}
		out = append(out, p.Conn)
	}
	return out
}

func (r *PeerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
