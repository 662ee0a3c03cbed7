package util

import (
	"sync"
	"time"
)

// IdleTimer calls a function once activity has stopped for a given duration.
// It fires at most once per idle period: after firing it stays quiet until the
// next Touch re-arms it.
//
// Example usage:
//
//	idle := NewIdleTimer(5*time.Second, func() { logger.Warn("no audio") })
//	defer idle.Stop()
//
//	for chunk := range chunks {
//	    idle.Touch()
//	    send(chunk)
//	}
type IdleTimer struct {
	duration time.Duration
	onIdle   func()

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// NewIdleTimer returns a disarmed timer. The first Touch arms it.
func NewIdleTimer(duration time.Duration, onIdle func()) *IdleTimer {
	return &IdleTimer{
		duration: duration,
		onIdle:   onIdle,
	}
}

// Touch records activity and pushes the deadline out by the full duration.
// It is a no-op after Stop.
func (t *IdleTimer) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.duration <= 0 {
		return
	}

	// A callback already scheduled for the previous generation must not run.
	t.gen++
	gen := t.gen
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.duration, func() { t.fire(gen) })
}

func (t *IdleTimer) fire(gen uint64) {
	t.mu.Lock()
	if t.stopped || gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()

	t.onIdle()
}

// Stop disarms the timer for good. Safe to call multiple times.
func (t *IdleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
