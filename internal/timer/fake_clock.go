package timer

import (
	"sync"
	"time"
)

// FakeClock is a Clock whose tickers only fire when Fire is called.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers map[*fakeTicker]struct{}
	created int
}

// NewFakeClock returns a FakeClock starting at the Unix epoch.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Unix(0, 0), tickers: make(map[*fakeTicker]struct{})}
}

func (c *FakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{clock: c, c: make(chan time.Time), stopped: make(chan struct{})}
	c.tickers[t] = struct{}{}
	c.created++
	return t
}

// Now returns the fake time. Fire moves it forward by one second.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the fake time forward without firing any ticker.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Active returns the number of tickers not yet stopped.
func (c *FakeClock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// Created returns how many tickers were ever created.
func (c *FakeClock) Created() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created
}

// Fire delivers one tick to every active ticker and returns how many
// received it. Each send blocks until the owner reads it or stops the
// ticker, so after Fire returns the tick has been picked up.
func (c *FakeClock) Fire() int {
	c.mu.Lock()
	c.now = c.now.Add(time.Second)
	now := c.now
	active := make([]*fakeTicker, 0, len(c.tickers))
	for t := range c.tickers {
		active = append(active, t)
	}
	c.mu.Unlock()

	delivered := 0
	for _, t := range active {
		select {
		case t.c <- now:
			delivered++
		case <-t.stopped:
		}
	}
	return delivered
}

type fakeTicker struct {
	clock   *FakeClock
	c       chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() {
	t.once.Do(func() {
		t.clock.mu.Lock()
		delete(t.clock.tickers, t)
		t.clock.mu.Unlock()
		close(t.stopped)
	})
}
