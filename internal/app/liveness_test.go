package app

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestLivenessMissedPongDeclaresDead(t *testing.T) {
	var pings atomic.Int32
	dead := make(chan DeathReason, 2)
	l := NewLiveness(LivenessConfig{PingPeriod: 10 * time.Millisecond, PongTimeout: 10 * time.Millisecond, MaxConnection: time.Hour},
		func() error { pings.Add(1); return nil },
		func(r DeathReason) { dead <- r })
	l.Start()

	select {
	case r := <-dead:
		if r != ReasonPongTimeout {
			t.Fatalf("unexpected reason %s", r)
		}
	case <-time.After(time.Second):
		t.Fatal("missed pong was not detected")
	}
	if pings.Load() < 1 {
		t.Fatal("no ping was sent")
	}
	if l.armed() != 0 {
		t.Fatalf("timers leaked after death: %d", l.armed())
	}
	select {
	case r := <-dead:
		t.Fatalf("onDead fired twice (%s)", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLivenessPongKeepsAlive(t *testing.T) {
	dead := make(chan DeathReason, 1)
	var l *Liveness
	l = NewLiveness(LivenessConfig{PingPeriod: 10 * time.Millisecond, PongTimeout: 30 * time.Millisecond, MaxConnection: time.Hour},
		func() error { go l.Pong(); return nil },
		func(r DeathReason) { dead <- r })
	l.Start()
	defer l.Stop()

	select {
	case r := <-dead:
		t.Fatalf("healthy connection declared dead: %s", r)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestLivenessMaxDuration(t *testing.T) {
	dead := make(chan DeathReason, 1)
	var l *Liveness
	l = NewLiveness(LivenessConfig{PingPeriod: time.Hour, PongTimeout: time.Hour, MaxConnection: 20 * time.Millisecond},
		func() error { return nil },
		func(r DeathReason) { dead <- r })
	l.Start()

	select {
	case r := <-dead:
		if r != ReasonMaxDuration {
			t.Fatalf("unexpected reason %s", r)
		}
	case <-time.After(time.Second):
		t.Fatal("max duration not enforced")
	}
}

func TestLivenessStopCancelsEverything(t *testing.T) {
	var fired atomic.Bool
	l := NewLiveness(LivenessConfig{PingPeriod: 5 * time.Millisecond, PongTimeout: 5 * time.Millisecond, MaxConnection: 15 * time.Millisecond},
		func() error { return errors.New("socket gone") },
		func(DeathReason) { fired.Store(true) })
	l.Start()
	l.Stop()
	l.Stop()

	if l.armed() != 0 {
		t.Fatalf("timers still armed after Stop: %d", l.armed())
	}
	time.Sleep(60 * time.Millisecond)
	if fired.Load() {
		t.Fatal("timer fired after Stop")
	}
	l.Start()
	if l.armed() != 0 {
		t.Fatal("Start after Stop must not re-arm")
	}
}

func TestLivenessPingErrorIsNotFatal(t *testing.T) {
	dead := make(chan DeathReason, 1)
	var l *Liveness
	var pings atomic.Int32
	l = NewLiveness(LivenessConfig{PingPeriod: 5 * time.Millisecond, PongTimeout: 50 * time.Millisecond, MaxConnection: time.Hour},
		func() error {
			pings.Add(1)
			go l.Pong()
			return errors.New("transient")
		},
		func(r DeathReason) { dead <- r })
	l.Start()
	defer l.Stop()

	waitFor(t, time.Second, func() bool { return pings.Load() >= 3 })
	select {
	case r := <-dead:
		t.Fatalf("ping error escalated to %s", r)
	default:
	}
}
