package domain

import "time"

type SessionID string

// Session is the metadata of a jam. Listener bookkeeping lives in app.
type Session struct {
	ID           SessionID
	Name         string
	StartedBy    PeerID
	StartedAt    time.Time
	LastActivity time.Time
}

// Expired reports whether the session has been silent for longer than timeout at now.
func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) > timeout
}
