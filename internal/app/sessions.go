package app

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Tocata/internal/core"
	"github.com/dkeye/Tocata/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrSessionNotFound = errors.New("session not found")

// DefaultSessionTimeout is the inactivity window after which a jam is reaped.
const DefaultSessionTimeout = 10 * time.Minute

type sessionEntry struct {
	meta domain.Session
	// listeners is copy-on-write: replaced, never mutated, so fan-out can
	// iterate a snapshot without copying.
	listeners []core.Connection
}

// SessionInfo is a read-only view for APIs (no transport fields).
type SessionInfo struct {
	ID             domain.SessionID `json:"sessionId"`
	Name           string           `json:"name"`
	StartedBy      domain.PeerID    `json:"startedBy"`
	StartMs        int64            `json:"startMs"`
	LastActivityMs int64            `json:"lastActivityMs"`
	Listeners      int              `json:"listeners"`
}

type SessionOption func(*SessionRegistry)

// WithClock overrides the time source; primarily used in tests.
func WithClock(now func() time.Time) SessionOption {
	return func(r *SessionRegistry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(gen func() domain.SessionID) SessionOption {
	return func(r *SessionRegistry) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// SessionRegistry owns every live jam. Reaping runs under the same lock as
// lookup and creation, so two concurrent logins never fork two sessions.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionEntry
	timeout  time.Duration
	now      func() time.Time
	newID    func() domain.SessionID
}

func NewSessionRegistry(timeout time.Duration, opts ...SessionOption) *SessionRegistry {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	r := &SessionRegistry{
		sessions: make(map[domain.SessionID]*sessionEntry),
		timeout:  timeout,
		now:      time.Now,
		newID:    func() domain.SessionID { return domain.SessionID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateIfAbsent returns the most recently active live session, creating one
// when every session has gone silent. Expired sessions are reaped first; they
// are returned so the caller can account for them.
func (r *SessionRegistry) CreateIfAbsent(by domain.PeerID, name string) (sess domain.Session, created bool, reaped []domain.Session) {
	var doomed []core.Connection

	r.mu.Lock()
	now := r.now()
	reaped, doomed = r.reapLocked(now)

	var best *sessionEntry
	for _, e := range r.sessions {
		if best == nil || e.meta.LastActivity.After(best.meta.LastActivity) {
			best = e
		}
	}
	if best == nil {
		best = &sessionEntry{meta: domain.Session{
			ID:           r.newID(),
			Name:         name,
			StartedBy:    by,
			StartedAt:    now,
			LastActivity: now,
		}}
		r.sessions[best.meta.ID] = best
		created = true
	} else {
		best.meta.LastActivity = now
	}
	sess = best.meta
	r.mu.Unlock()

	closeAll(doomed)
	if created {
		log.Info().Str("module", "app.sessions").Str("session", string(sess.ID)).Str("by", string(by)).Msg("session created")
	}
	return sess, created, reaped
}

// Reap evicts every session idle for longer than the timeout and closes its listeners.
func (r *SessionRegistry) Reap() []domain.Session {
	r.mu.Lock()
	reaped, doomed := r.reapLocked(r.now())
	r.mu.Unlock()
	closeAll(doomed)
	return reaped
}

func (r *SessionRegistry) reapLocked(now time.Time) ([]domain.Session, []core.Connection) {
	var reaped []domain.Session
	var doomed []core.Connection
	for id, e := range r.sessions {
		if !e.meta.Expired(now, r.timeout) {
			continue
		}
		reaped = append(reaped, e.meta)
		doomed = append(doomed, e.listeners...)
		delete(r.sessions, id)
		log.Info().Str("module", "app.sessions").Str("session", string(id)).Int("listeners", len(e.listeners)).Msg("session reaped")
	}
	return reaped, doomed
}

func closeAll(conns []core.Connection) {
	for _, c := range conns {
		c.Close()
	}
}

func (r *SessionRegistry) Get(id domain.SessionID) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	return e.meta, true
}

func (r *SessionRegistry) Touch(id domain.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return false
	}
	e.meta.LastActivity = r.now()
	return true
}

// AttachListener subscribes conn to the session's binary frames.
func (r *SessionRegistry) AttachListener(id domain.SessionID, conn core.Connection) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}
	for _, c := range e.listeners {
		if c.ID() == conn.ID() {
			return e.meta, nil
		}
	}
	next := make([]core.Connection, len(e.listeners), len(e.listeners)+1)
	copy(next, e.listeners)
	e.listeners = append(next, conn)
	log.Info().Str("module", "app.sessions").Str("session", string(id)).Str("conn", string(conn.ID())).Int("listeners", len(e.listeners)).Msg("listener attached")
	return e.meta, nil
}

// DetachListener removes cid from every session and reports how many lists it was in.
func (r *SessionRegistry) DetachListener(cid core.ConnID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.sessions {
		idx := -1
		for i, c := range e.listeners {
			if c.ID() == cid {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		next := make([]core.Connection, 0, len(e.listeners)-1)
		next = append(next, e.listeners[:idx]...)
		next = append(next, e.listeners[idx+1:]...)
		e.listeners = next
		removed++
		log.Info().Str("module", "app.sessions").Str("session", string(id)).Str("conn", string(cid)).Msg("listener detached")
	}
	return removed
}

// Fanout touches the session and returns its current listeners.
// The returned slice is shared and must not be modified.
func (r *SessionRegistry) Fanout(id domain.SessionID) ([]core.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.meta.LastActivity = r.now()
	return e.listeners, true
}

func (r *SessionRegistry) List() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, infoOf(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartMs < out[j].StartMs })
	return out
}

func (r *SessionRegistry) Info(id domain.SessionID) (SessionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return SessionInfo{}, false
	}
	return infoOf(e), true
}

func infoOf(e *sessionEntry) SessionInfo {
	return SessionInfo{
		ID:             e.meta.ID,
		Name:           e.meta.Name,
		StartedBy:      e.meta.StartedBy,
		StartMs:        e.meta.StartedAt.UnixMilli(),
		LastActivityMs: e.meta.LastActivity.UnixMilli(),
		Listeners:      len(e.listeners),
	}
}

func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *SessionRegistry) ListenerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.sessions {
		n += len(e.listeners)
	}
	return n
}
