package domain

// Status is the login outcome carried on the wire. Values are stable; add, never renumber.
type Status int

const (
	StatusDisconnected Status = iota
	StatusInvalidUser
	StatusInvalidPassword
	StatusConnectionFailed
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusInvalidUser:
		return "invalid_user"
	case StatusInvalidPassword:
		return "invalid_password"
	case StatusConnectionFailed:
		return "connection_failed"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}
