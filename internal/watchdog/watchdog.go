// Package watchdog ends an authenticated session after a period without
// user interaction.
package watchdog

import (
	"sync"
	"time"

	"salonbook/shared/logging"
)

// Interaction is a kind of user activity.
type Interaction string

const (
	PointerDown Interaction = "pointerdown"
	PointerMove Interaction = "pointermove"
	KeyDown     Interaction = "keydown"
	Scroll      Interaction = "scroll"
	TouchStart  Interaction = "touchstart"
	Click       Interaction = "click"
)

// MonitoredInteractions are the interactions that reset the idle timer.
var MonitoredInteractions = []Interaction{PointerDown, PointerMove, KeyDown, Scroll, TouchStart, Click}

// Source delivers interactions to subscribers. Handlers must not be invoked
// while the source holds locks that Subscribe or unsubscribe need.
type Source interface {
	Subscribe(kinds []Interaction, fn func(Interaction)) (unsubscribe func())
}

// Watchdog holds at most one pending idle timer and is safe for concurrent
// use.
type Watchdog struct {
	source Source
	clock  Clock
	logger logging.Logger

	mu            sync.Mutex
	onInactive    func()
	timeout       time.Duration
	authenticated bool
	unsubscribe   func()
	timer         Timer
	gen           uint64
}

// New creates a disarmed watchdog. A nil clock uses the real clock.
func New(source Source, clock Clock, logger logging.Logger) *Watchdog {
	if clock == nil {
		clock = RealClock()
	}
	return &Watchdog{
		source: source,
		clock:  clock,
		logger: logging.OrNop(logger),
	}
}

// Arm replaces the current activation. When isAuthenticated is true the
// watchdog attaches to the interaction source and starts the idle timer;
// onInactive runs once after minutes of silence. Non-positive minutes
// disable the watchdog.
func (w *Watchdog) Arm(onInactive func(), minutes int, isAuthenticated bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.teardownLocked()
	w.onInactive = onInactive
	w.timeout = time.Duration(minutes) * time.Minute
	w.authenticated = isAuthenticated
	if isAuthenticated {
		w.activateLocked()
	}
}

// SetAuthenticated reports an authentication change. Going false cancels
// the pending timer and detaches listeners at once; going true starts a
// fresh cycle with the last armed callback and timeout.
func (w *Watchdog) SetAuthenticated(authenticated bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if authenticated == w.authenticated {
		return
	}
	w.authenticated = authenticated
	if authenticated {
		w.activateLocked()
		return
	}
	w.teardownLocked()
	w.logger.Debug("idle watchdog disarmed")
}

// Close releases listeners and the pending timer.
func (w *Watchdog) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.authenticated = false
	w.teardownLocked()
}

// Active reports whether a timer is pending.
func (w *Watchdog) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timer != nil
}

func (w *Watchdog) activateLocked() {
	if w.timeout <= 0 || w.onInactive == nil {
		return
	}
	if w.source != nil {
		w.unsubscribe = w.source.Subscribe(MonitoredInteractions, w.touch)
	}
	w.resetLocked()
	w.logger.Debug("idle watchdog armed", "timeout", w.timeout.String())
}

func (w *Watchdog) teardownLocked() {
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.unsubscribe != nil {
		w.unsubscribe()
		w.unsubscribe = nil
	}
}

// resetLocked replaces the pending timer. The generation makes a callback
// from a replaced timer a no-op even if Stop lost the race.
func (w *Watchdog) resetLocked() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	gen := w.gen
	w.timer = w.clock.AfterFunc(w.timeout, func() { w.fire(gen) })
}

func (w *Watchdog) touch(Interaction) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.authenticated || w.timer == nil {
		return
	}
	w.resetLocked()
}

func (w *Watchdog) fire(gen uint64) {
	w.mu.Lock()
	if gen != w.gen || !w.authenticated {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	w.authenticated = false
	w.teardownLocked()
	cb, timeout := w.onInactive, w.timeout
	w.mu.Unlock()

	w.logger.Info("session inactive", "timeout", timeout.String())
	cb()
}
