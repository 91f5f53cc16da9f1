package core

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Tocata/internal/domain"
)

var ErrBadMessage = errors.New("bad message")

type MessageKind int

const (
	TextMessage MessageKind = iota + 1
	BinaryMessage
)

// Inbound is what the transport hands to the router: a text envelope or a raw frame, never both.
type Inbound struct {
	Kind MessageKind
	Data Frame
}

const (
	TypeLogin  = "Login"
	TypeListen = "Listen"
	TypeBye    = "Bye"
)

type Envelope struct {
	Type string `json:"type"`
}

type LoginRequest struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Type      string           `json:"type"`
	Status    domain.Status    `json:"status"`
	Sender    domain.PeerID    `json:"sender,omitempty"`
	Name      string           `json:"name,omitempty"`
	SessionID domain.SessionID `json:"sessionId,omitempty"`
}

type ListenRequest struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"sessionId"`
}

type ListenResponse struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"sessionId"`
	Name      string           `json:"name"`
	StartMs   int64            `json:"startMs"`
}

type ByeMessage struct {
	Type   string        `json:"type"`
	Sender domain.PeerID `json:"sender"`
}

// PeekType returns the type discriminator of a text frame.
func PeekType(data Frame) (string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", errors.Join(ErrBadMessage, err)
	}
	if env.Type == "" {
		return "", ErrBadMessage
	}
	return env.Type, nil
}

// RewriteRelay stamps sender and name on an application message, overwriting
// whatever the client put there, and returns the optional destination.
func RewriteRelay(data Frame, sender domain.PeerID, name string) (Frame, domain.PeerID, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, "", errors.Join(ErrBadMessage, err)
	}
	var dst domain.PeerID
	if raw, ok := fields["dst"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, "", errors.Join(ErrBadMessage, err)
		}
		dst = domain.PeerID(s)
	}
	senderRaw, _ := json.Marshal(sender)
	nameRaw, _ := json.Marshal(name)
	fields["sender"] = senderRaw
	fields["name"] = nameRaw
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, "", err
	}
	return out, dst, nil
}
