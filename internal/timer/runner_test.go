package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunner_TickerLifecycle(t *testing.T) {
	clock := NewFakeClock()
	r := NewRunner(New(60), clock, time.Second)

	assert.Nil(t, r.C())
	assert.False(t, r.Ticking())

	r.Start(2)
	require.True(t, r.Ticking())
	assert.NotNil(t, r.C())
	assert.Equal(t, 1, clock.Active())

	r.Pause()
	assert.False(t, r.Ticking())
	assert.Equal(t, 0, clock.Active())

	r.Toggle()
	assert.True(t, r.Ticking())
	assert.False(t, r.Tick())
	assert.True(t, r.Tick())
	assert.False(t, r.Ticking(), "ticker is released on expiry")
	assert.Equal(t, 0, clock.Active())
	assert.Equal(t, 2, clock.Created())
}

func TestRunner_RestartReplacesTicker(t *testing.T) {
	clock := NewFakeClock()
	r := NewRunner(New(60), clock, time.Second)

	r.Start(60)
	first := r.C()
	r.Start(30)
	require.True(t, r.Ticking())
	assert.Equal(t, 2, clock.Created())
	assert.Equal(t, 1, clock.Active(), "old ticker is stopped")
	assert.NotEqual(t, first, r.C())
	assert.Equal(t, 30, r.State().Remaining)

	r.Stop()
	assert.Equal(t, 0, clock.Active())
}

func TestRunner_StartZeroNeverAllocatesTicker(t *testing.T) {
	clock := NewFakeClock()
	r := NewRunner(New(60), clock, time.Second)
	assert.True(t, r.Start(0))
	assert.Equal(t, 0, clock.Created())
}

func TestRunner_DrivenByFakeClock(t *testing.T) {
	clock := NewFakeClock()
	r := NewRunner(New(60), clock, time.Second)
	r.Start(3)

	expired := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			c := r.C()
			if c == nil {
				return
			}
			<-c
			if r.Tick() {
				close(expired)
			}
		}
	}()

	for i := 0; i < 3; i++ {
		require.Equal(t, 1, clock.Fire())
	}
	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not expire")
	}
	<-stopped
	assert.Equal(t, 0, r.State().Remaining)
	assert.Equal(t, 0, clock.Active())
}

func TestRunner_StopReleasesTicker(t *testing.T) {
	clock := NewFakeClock()
	r := NewRunner(New(60), clock, 0)
	r.Start(30)
	r.Stop()
	assert.Equal(t, 0, clock.Active())
	assert.Equal(t, 30, r.State().Remaining)
	assert.Equal(t, 0, clock.Fire())
}

func TestFakeClock_Time(t *testing.T) {
	clock := NewFakeClock()
	start := clock.Now()
	clock.Advance(time.Minute)
	assert.Equal(t, time.Minute, clock.Now().Sub(start))
	clock.Fire()
	assert.Equal(t, time.Minute+time.Second, clock.Now().Sub(start))
}

func TestRealClock(t *testing.T) {
	tk := RealClock{}.NewTicker(time.Millisecond)
	defer tk.Stop()
	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker did not fire")
	}
}
