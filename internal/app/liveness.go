package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultPingPeriod    = 50 * time.Second
	DefaultPongTimeout   = 5 * time.Second
	DefaultMaxConnection = 5 * time.Hour
)

type DeathReason string

const (
	ReasonPongTimeout DeathReason = "pong_timeout"
	ReasonMaxDuration DeathReason = "max_duration"
)

type LivenessConfig struct {
	PingPeriod    time.Duration
	PongTimeout   time.Duration
	MaxConnection time.Duration
}

func (c LivenessConfig) withDefaults() LivenessConfig {
	if c.PingPeriod <= 0 {
		c.PingPeriod = DefaultPingPeriod
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = DefaultPongTimeout
	}
	if c.MaxConnection <= 0 {
		c.MaxConnection = DefaultMaxConnection
	}
	return c
}

// Liveness owns a peer's heartbeat, reply and lifetime timers.
// onDead fires at most once, and never after Stop returns.
type Liveness struct {
	cfg    LivenessConfig
	ping   func() error
	onDead func(DeathReason)

	mu        sync.Mutex
	heartbeat *time.Timer
	reply     *time.Timer
	lifetime  *time.Timer
	// replyGen invalidates reply timers that fired while Pong held the lock.
	replyGen uint64
	stopped  bool
}

func NewLiveness(cfg LivenessConfig, ping func() error, onDead func(DeathReason)) *Liveness {
	return &Liveness{cfg: cfg.withDefaults(), ping: ping, onDead: onDead}
}

func (l *Liveness) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped || l.heartbeat != nil {
		return
	}
	l.heartbeat = time.AfterFunc(l.cfg.PingPeriod, l.beat)
	l.lifetime = time.AfterFunc(l.cfg.MaxConnection, func() { l.expire(ReasonMaxDuration, 0, false) })
}

func (l *Liveness) beat() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	if l.reply != nil {
		l.reply.Stop()
	}
	l.replyGen++
	gen := l.replyGen
	l.reply = time.AfterFunc(l.cfg.PongTimeout, func() { l.expire(ReasonPongTimeout, gen, true) })
	l.mu.Unlock()

	if err := l.ping(); err != nil {
		log.Debug().Err(err).Str("module", "app.liveness").Msg("ping failed")
	}

	l.mu.Lock()
	if !l.stopped {
		l.heartbeat.Reset(l.cfg.PingPeriod)
	}
	l.mu.Unlock()
}

// Pong cancels the pending reply timer.
func (l *Liveness) Pong() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reply != nil {
		l.reply.Stop()
		l.reply = nil
	}
	l.replyGen++
}

func (l *Liveness) expire(reason DeathReason, gen uint64, checkGen bool) {
	l.mu.Lock()
	if l.stopped || (checkGen && gen != l.replyGen) {
		l.mu.Unlock()
		return
	}
	l.stopLocked()
	l.mu.Unlock()
	log.Info().Str("module", "app.liveness").Str("reason", string(reason)).Msg("connection declared dead")
	l.onDead(reason)
}

// Stop cancels every timer. Safe to call more than once.
func (l *Liveness) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

func (l *Liveness) stopLocked() {
	l.stopped = true
	for _, t := range []*time.Timer{l.heartbeat, l.reply, l.lifetime} {
		if t != nil {
			t.Stop()
		}
	}
	l.heartbeat, l.reply, l.lifetime = nil, nil, nil
}

func (l *Liveness) Stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

// armed counts timers still held; zero once stopped.
func (l *Liveness) armed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, t := range []*time.Timer{l.heartbeat, l.reply, l.lifetime} {
		if t != nil {
			n++
		}
	}
	return n
}
