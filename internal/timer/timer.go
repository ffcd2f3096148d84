// Package timer implements the rest-interval countdown.
//
// RestTimer is a pure state machine with three phases:
//
//	Idle    remaining > 0, not running
//	Running remaining > 0, running
//	Expired remaining == 0, not running
//
// Start and Toggle move Idle/Expired to Running, Pause and Toggle move
// Running to Idle, and a Tick that reaches zero moves Running to Expired.
// Expired is re-armed by Start, Toggle or Reset.
package timer

import "fmt"

// DefaultRestSeconds is the rest interval used when none is configured.
const DefaultRestSeconds = 60

// Phase is the observable state of a RestTimer.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhaseExpired Phase = "expired"
)

// State is a point-in-time copy of a RestTimer.
type State struct {
	Remaining int   `json:"remaining"`
	Running   bool  `json:"running"`
	Phase     Phase `json:"phase"`
}

// RestTimer counts whole seconds down to zero.
// It is not safe for concurrent use; callers serialise access.
type RestTimer struct {
	remaining       int
	running         bool
	defaultDuration int
}

// New returns an idle timer armed with defaultSeconds.
func New(defaultSeconds int) *RestTimer {
	if defaultSeconds <= 0 {
		defaultSeconds = DefaultRestSeconds
	}
	return &RestTimer{remaining: defaultSeconds, defaultDuration: defaultSeconds}
}

// Start arms the timer with seconds and runs it. Negative values count as
// zero. It reports true when the countdown expired on the spot (seconds == 0).
func (t *RestTimer) Start(seconds int) bool {
	if seconds < 0 {
		seconds = 0
	}
	t.remaining = seconds
	t.running = true
	return t.expireIfDone()
}

// Toggle pauses a running timer or resumes a paused one. Toggling an
// expired timer re-arms it with the default duration and starts it.
func (t *RestTimer) Toggle() bool {
	if t.running {
		t.running = false
		return false
	}
	if t.remaining == 0 {
		return t.Start(t.defaultDuration)
	}
	t.running = true
	return false
}

// Pause stops the countdown without changing the remaining time.
func (t *RestTimer) Pause() {
	t.running = false
}

// Reset stops the timer and re-arms it with the default duration.
func (t *RestTimer) Reset() {
	t.running = false
	t.remaining = t.defaultDuration
}

// Tick advances the countdown by one second. It does nothing while the
// timer is not running and reports true exactly once per countdown, on
// the tick that reaches zero.
func (t *RestTimer) Tick() bool {
	if !t.running {
		return false
	}
	if t.remaining > 0 {
		t.remaining--
	}
	return t.expireIfDone()
}

func (t *RestTimer) expireIfDone() bool {
	if t.running && t.remaining == 0 {
		t.running = false
		return true
	}
	return false
}

// Remaining returns the seconds left on the countdown.
func (t *RestTimer) Remaining() int { return t.remaining }

// Running reports whether the countdown is ticking.
func (t *RestTimer) Running() bool { return t.running }

// DefaultDuration returns the duration used by Reset and by Toggle on expiry.
func (t *RestTimer) DefaultDuration() int { return t.defaultDuration }

// Phase classifies the current state.
func (t *RestTimer) Phase() Phase {
	switch {
	case t.running:
		return PhaseRunning
	case t.remaining == 0:
		return PhaseExpired
	default:
		return PhaseIdle
	}
}

// State returns a copy of the current state.
func (t *RestTimer) State() State {
	return State{Remaining: t.remaining, Running: t.running, Phase: t.Phase()}
}

// Format renders seconds as m:ss, e.g. 65 -> "1:05".
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
