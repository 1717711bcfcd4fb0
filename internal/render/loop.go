package render

import (
	"sync"
	"time"
)

// Loop coalesces redraw requests into at most one present call per frame
// interval. present runs on a timer goroutine; the caller hands it to the
// UI thread.
type Loop struct {
	interval time.Duration
	present  func()

	mu      sync.Mutex
	last    time.Time
	pending bool
	stopped bool
	timer   *time.Timer
}

// NewLoop creates a loop calling present when a frame is due.
func NewLoop(interval time.Duration, present func()) *Loop {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Loop{interval: interval, present: present}
}

// Request marks the scene dirty. The next present happens immediately if a
// full interval has passed since the previous one, otherwise when it has.
func (l *Loop) Request() {
	l.RequestAfter(0)
}

// RequestAfter schedules a present no sooner than d from now. A skipped frame
// uses it to re-arm for the remaining budget.
func (l *Loop) RequestAfter(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped || l.pending {
		return
	}
	wait := l.interval - time.Since(l.last)
	if wait < d {
		wait = d
	}
	if wait < 0 {
		wait = 0
	}
	l.pending = true
	l.timer = time.AfterFunc(wait, l.fire)
}

func (l *Loop) fire() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.pending = false
	l.last = time.Now()
	l.mu.Unlock()

	l.present()
}

// Stop cancels any scheduled present.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	if l.timer != nil {
		l.timer.Stop()
	}
}
