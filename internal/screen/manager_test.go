package screen

import (
	"alcyxob/workym/internal/identity"
	"alcyxob/workym/internal/repository"
	"alcyxob/workym/internal/repository/memory"
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_OpenIsIdempotent(t *testing.T) {
	f := newFixture()
	m := NewManager(f.config(""))
	defer m.Shutdown()

	a, err := m.Open("u1")
	require.NoError(t, err)
	b, err := m.Open("u1")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GaugeScreens))

	_, err = m.Open("")
	assert.Error(t, err)
	assert.Equal(t, 1, m.Len())
}

func TestManager_CloseAndShutdown(t *testing.T) {
	f := newFixture()
	m := NewManager(f.config(""))

	_, err := m.Open("u1")
	require.NoError(t, err)
	_, err = m.Open("u2")
	require.NoError(t, err)

	require.NoError(t, m.Close("u1"))
	require.NoError(t, m.Close("u1"))
	_, ok := m.Get("u1")
	assert.False(t, ok)
	assert.Equal(t, 0, f.repo.Subscribers(f.path("u1")))

	require.NoError(t, m.Shutdown())
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.GaugeScreens))
}

func TestManager_FollowsAuthState(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	m := NewManager(f.config(""))
	defer m.Shutdown()

	session, err := identity.NewTokenSession(memory.NewUserRepository(), "secret", time.Hour, nil)
	require.NoError(t, err)
	unsubscribe := session.OnAuthStateChange(m.HandleAuthState)
	defer unsubscribe()

	in, err := session.SignInAnonymous(ctx)
	require.NoError(t, err)
	s, ok := m.Get(in.UserID)
	require.True(t, ok)
	assert.Equal(t, in.UserID, s.UserID())

	require.NoError(t, session.SignOut(ctx, in.Token))
	_, ok = m.Get(in.UserID)
	assert.False(t, ok)
}

// blockingRepo holds Subscribe for one path until release is closed.
type blockingRepo struct {
	repository.WorkoutRepository
	slow    repository.DocumentPath
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRepo) Subscribe(ctx context.Context, p repository.DocumentPath) (repository.Subscription, error) {
	if p == r.slow {
		close(r.entered)
		<-r.release
	}
	return r.WorkoutRepository.Subscribe(ctx, p)
}

func TestManager_SlowOpenDoesNotBlockOtherUsers(t *testing.T) {
	f := newFixture()
	repo := &blockingRepo{
		WorkoutRepository: f.repo,
		slow:              f.path("slow"),
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
	}
	cfg := f.config("")
	cfg.Repo = repo
	m := NewManager(cfg)
	defer m.Shutdown()

	opened := make(chan *Screen, 2)
	openSlow := func() {
		s, err := m.Open("slow")
		assert.NoError(t, err)
		opened <- s
	}
	go openSlow()
	<-repo.entered
	go openSlow()

	fastDone := make(chan struct{})
	go func() {
		defer close(fastDone)
		_, err := m.Open("fast")
		assert.NoError(t, err)
	}()
	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		close(repo.release)
		t.Fatal("opening another user's screen waited for a pending subscribe")
	}

	_, ok := m.Get("slow")
	assert.False(t, ok, "a screen still opening is not returned")
	assert.Equal(t, 1, m.Len())

	close(repo.release)
	a, b := <-opened, <-opened
	assert.Same(t, a, b)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.GaugeScreens))
}

func TestManager_CloseWhileOpening(t *testing.T) {
	f := newFixture()
	repo := &blockingRepo{
		WorkoutRepository: f.repo,
		slow:              f.path("slow"),
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
	}
	cfg := f.config("")
	cfg.Repo = repo
	m := NewManager(cfg)
	defer m.Shutdown()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.Open("slow")
	}()
	<-repo.entered

	closed := make(chan error, 1)
	go func() { closed <- m.Close("slow") }()
	close(repo.release)
	require.NoError(t, <-closed)
	<-done

	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, f.repo.Subscribers(f.path("slow")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.GaugeScreens))
}

func TestManager_EvictIdle(t *testing.T) {
	f := newFixture()
	m := NewManager(f.config(""), WithIdleTimeout(time.Minute))
	defer m.Shutdown()

	_, err := m.Open("u1")
	require.NoError(t, err)
	watched, err := m.Open("u2")
	require.NoError(t, err)
	_, stop := watched.Watch()

	f.clock.Advance(30 * time.Second)
	_, err = m.Open("u1")
	require.NoError(t, err)

	f.clock.Advance(40 * time.Second)
	assert.Equal(t, 0, m.EvictIdle(), "u1 was used 40s ago")

	f.clock.Advance(30 * time.Second)
	assert.Equal(t, 1, m.EvictIdle())
	_, ok := m.Get("u1")
	assert.False(t, ok)
	assert.Equal(t, 0, f.repo.Subscribers(f.path("u1")))
	_, ok = m.Get("u2")
	assert.True(t, ok, "watched screens stay open")

	stop()
	f.clock.Advance(59 * time.Second)
	assert.Equal(t, 0, m.EvictIdle(), "detaching the last watcher counts as use")
	f.clock.Advance(time.Second)
	assert.Equal(t, 1, m.EvictIdle())
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.GaugeScreens))
}

func TestManager_EvictionDisabled(t *testing.T) {
	f := newFixture()
	m := NewManager(f.config(""))
	defer m.Shutdown()

	_, err := m.Open("u1")
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)
	assert.Equal(t, 0, m.EvictIdle())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Run(ctx, time.Second)
	assert.Equal(t, 1, m.Len())
}

func TestManager_RunEvictsAbandonedSignIns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFixture()
	m := NewManager(f.config(""), WithIdleTimeout(time.Minute))
	defer m.Shutdown()

	session, err := identity.NewTokenSession(memory.NewUserRepository(), "secret", time.Hour, nil)
	require.NoError(t, err)
	unsubscribe := session.OnAuthStateChange(m.HandleAuthState)
	defer unsubscribe()
	for i := 0; i < 5; i++ {
		_, err := session.SignInAnonymous(ctx)
		require.NoError(t, err)
	}
	require.Equal(t, 5, m.Len())

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		m.Run(ctx, time.Second)
	}()

	f.clock.Advance(2 * time.Minute)
	assert.Eventually(t, func() bool {
		f.clock.Fire()
		return m.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-stopped
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.GaugeScreens))
}
