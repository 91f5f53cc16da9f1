package core

import "errors"

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Frame is a raw payload, either a JSON text message or an opaque audio frame.
type Frame []byte

// ConnID identifies one live transport connection.
type ConnID string

// Connection abstracts a persistent bidirectional socket.
// Owned by the adapter; sends never block, they enqueue or fail.
type Connection interface {
	ID() ConnID
	// TrySend enqueues a text frame.
	TrySend(Frame) error
	// TrySendBinary enqueues a binary frame. The frame must not be mutated afterwards.
	TrySendBinary(Frame) error
	// Ping writes a transport-level ping.
	Ping() error
	// Close is idempotent.
	Close()
}
