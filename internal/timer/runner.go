package timer

import "time"

// Clock creates tickers. RealClock is used in production, FakeClock in tests.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// Ticker mirrors the parts of *time.Ticker the Runner needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock hands out time.Ticker based tickers.
type RealClock struct{}

func (RealClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Runner pairs a RestTimer with a ticker that exists only while the timer
// runs. The owner selects on C() and calls Tick for every value received.
// Like RestTimer it must be driven from a single goroutine.
type Runner struct {
	timer    *RestTimer
	clock    Clock
	interval time.Duration
	ticker   Ticker
}

// NewRunner wraps t. A zero interval means one second.
func NewRunner(t *RestTimer, clock Clock, interval time.Duration) *Runner {
	if clock == nil {
		clock = RealClock{}
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Runner{timer: t, clock: clock, interval: interval}
}

// C returns the tick channel, or nil when the timer is not running.
// A nil channel blocks forever in a select, which disables the case.
func (r *Runner) C() <-chan time.Time {
	if r.ticker == nil {
		return nil
	}
	return r.ticker.C()
}

// Start begins a fresh countdown. A running ticker is replaced so the first
// tick lands a full interval after Start.
func (r *Runner) Start(seconds int) bool {
	r.release()
	expired := r.timer.Start(seconds)
	r.sync()
	return expired
}

func (r *Runner) Toggle() bool {
	expired := r.timer.Toggle()
	r.sync()
	return expired
}

func (r *Runner) Pause() {
	r.timer.Pause()
	r.sync()
}

func (r *Runner) Reset() {
	r.timer.Reset()
	r.sync()
}

func (r *Runner) Tick() bool {
	expired := r.timer.Tick()
	r.sync()
	return expired
}

// State returns the wrapped timer's state.
func (r *Runner) State() State {
	return r.timer.State()
}

// Ticking reports whether a ticker is currently allocated.
func (r *Runner) Ticking() bool {
	return r.ticker != nil
}

// Stop releases the ticker and pauses the timer. The runner stays usable.
func (r *Runner) Stop() {
	r.timer.Pause()
	r.sync()
}

// sync allocates the ticker when the timer starts running and releases it
// as soon as it stops, so no interval outlives a running countdown.
func (r *Runner) sync() {
	switch {
	case r.timer.Running() && r.ticker == nil:
		r.ticker = r.clock.NewTicker(r.interval)
	case !r.timer.Running() && r.ticker != nil:
		r.release()
	}
}

func (r *Runner) release() {
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
}
