// Package coretest provides an in-memory core.Connection for tests.
package coretest

import (
	"sync"

	"github.com/dkeye/Tocata/internal/core"
)

// Conn records everything sent to it. Capacity bounds each queue; zero means unbounded.
type Conn struct {
	id       core.ConnID
	capacity int

	mu      sync.Mutex
	text    []core.Frame
	binary  []core.Frame
	pings   int
	closes  int
	closed  bool
	pingErr error
}

func NewConn(id string) *Conn { return &Conn{id: core.ConnID(id)} }

// NewBoundedConn fails sends with core.ErrBackpressure once capacity frames are queued.
func NewBoundedConn(id string, capacity int) *Conn {
	return &Conn{id: core.ConnID(id), capacity: capacity}
}

func (c *Conn) ID() core.ConnID { return c.id }

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.capacity > 0 && len(c.text)+len(c.binary) >= c.capacity {
		return core.ErrBackpressure
	}
	c.text = append(c.text, f)
	return nil
}

func (c *Conn) TrySendBinary(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.capacity > 0 && len(c.text)+len(c.binary) >= c.capacity {
		return core.ErrBackpressure
	}
	c.binary = append(c.binary, f)
	return nil
}

func (c *Conn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return c.pingErr
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	c.closed = true
}

func (c *Conn) SetPingError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingErr = err
}

func (c *Conn) Text() []core.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Frame(nil), c.text...)
}

func (c *Conn) Binary() []core.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Frame(nil), c.binary...)
}

func (c *Conn) Pings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

func (c *Conn) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
