// Package screen holds the per-user view controller. Every state change of
// a screen (user commands, collection snapshots, timer ticks) is applied by
// a single command-loop goroutine, so UI state is never touched concurrently.
package screen

import (
	"alcyxob/workym/internal/domain"
	"alcyxob/workym/internal/haptic"
	"alcyxob/workym/internal/metrics"
	"alcyxob/workym/internal/repository"
	"alcyxob/workym/internal/timer"
	"alcyxob/workym/internal/workoutsync"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// --- Error Definitions ---
var (
	ErrClosed          = errors.New("screen closed")
	ErrWorkoutNotFound = fmt.Errorf("%w: workout", domain.ErrNotFound)
	ErrInvalidTab      = fmt.Errorf("%w: unknown tab", domain.ErrValidation)
	ErrNoSelection     = fmt.Errorf("%w: no workout selected", domain.ErrValidation)
	ErrNegativeRest    = fmt.Errorf("%w: rest duration must not be negative", domain.ErrValidation)
)

const listenerBuffer = 16

// Config holds everything needed to open a screen.
type Config struct {
	UserID       string
	Repo         repository.WorkoutRepository
	Namespace    string
	AppID        string
	DefaultRest  int // seconds
	TickInterval time.Duration
	Clock        timer.Clock
	WriteTimeout time.Duration
	Device       haptic.Device // optional extra haptic sink
	Logger       *zap.Logger
	Metrics      *metrics.Manager
	Now          func() time.Time // last-use stamps; time.Now when nil
}

// CommandType enumerates the user actions a screen understands.
type CommandType int

const (
	CmdRender CommandType = iota
	CmdSelectTab
	CmdSelectWorkout
	CmdClearSelection
	CmdSetEditing
	CmdCreateWorkout
	CmdCompleteSet
	CmdStartTimer
	CmdToggleTimer
	CmdResetTimer
)

// Command is a message to the screen's command loop.
type Command struct {
	Type       CommandType
	Tab        Tab
	WorkoutID  string
	ExerciseID int64
	Editing    bool
	Seconds    int

	reply chan commandResult
}

type commandResult struct {
	view View
	err  error
}

// EventType distinguishes the events streamed to watchers.
type EventType string

const (
	EventView   EventType = "view"
	EventHaptic EventType = "haptic"
)

// Event is pushed to watchers after every state change and on every
// haptic trigger, so a remote client can re-render and vibrate.
type Event struct {
	Type   EventType        `json:"type"`
	View   *View            `json:"view,omitempty"`
	Haptic haptic.Intensity `json:"haptic,omitempty"`
}

// Screen is one signed-in user's view controller.
type Screen struct {
	cfg      Config
	userID   string
	logger   *zap.Logger
	store    *workoutsync.Store
	runner   *timer.Runner
	feedback *haptic.Feedback

	// owned by the loop goroutine
	ui UIState

	cmds     chan Command
	dirty    chan struct{}
	syncErrs chan error
	done     chan struct{}
	exited   chan struct{}
	once     sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	writes sync.WaitGroup

	lmu          sync.Mutex
	listeners    map[int]chan Event
	nextListener int
	closed       bool
	last         View

	lastUsed atomic.Int64 // unix nanos
}

// Open starts a screen for cfg.UserID and subscribes to its workouts.
// A failing subscription does not fail Open: the screen leaves the loading
// state and reports itself offline instead.
func Open(cfg Config) (*Screen, error) {
	if cfg.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.DefaultRest <= 0 {
		cfg.DefaultRest = timer.DefaultRestSeconds
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Screen{
		cfg:       cfg,
		userID:    cfg.UserID,
		logger:    cfg.Logger.With(zap.String("uid", cfg.UserID)),
		ui:        UIState{ActiveTab: TabWorkout, Loading: true},
		cmds:      make(chan Command),
		dirty:     make(chan struct{}, 1),
		syncErrs:  make(chan error, 1),
		done:      make(chan struct{}),
		exited:    make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[int]chan Event),
	}
	s.store = workoutsync.New(workoutsync.Config{
		Repo:      cfg.Repo,
		Namespace: cfg.Namespace,
		AppID:     cfg.AppID,
		Logger:    s.logger,
		Metrics:   cfg.Metrics,
		OnChange:  s.markDirty,
		OnError:   s.markSyncError,
	})
	s.runner = timer.NewRunner(timer.New(cfg.DefaultRest), cfg.Clock, cfg.TickInterval)
	s.feedback = haptic.New(haptic.Multi(haptic.DeviceFunc(s.emitHaptic), cfg.Device))
	s.last = s.render()
	s.Touch()

	go s.loop()

	if err := s.store.Subscribe(ctx, s.userID); err != nil {
		s.logger.Warn("screen opened without live workouts", zap.Error(err))
	}
	return s, nil
}

// UserID returns the owner of the screen.
func (s *Screen) UserID() string { return s.userID }

// Touch records a use of the screen.
func (s *Screen) Touch() { s.lastUsed.Store(s.cfg.Now().UnixNano()) }

// LastUsed returns the time of the latest Touch or watcher detach.
func (s *Screen) LastUsed() time.Time { return time.Unix(0, s.lastUsed.Load()) }

// Watchers returns the number of attached Watch streams.
func (s *Screen) Watchers() int {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	return len(s.listeners)
}

// Idle reports whether nobody watches the screen and it has not been used
// for at least timeout.
func (s *Screen) Idle(now time.Time, timeout time.Duration) bool {
	if s.Watchers() > 0 {
		return false
	}
	return now.Sub(s.LastUsed()) >= timeout
}

// Close tears down the subscription, the timer ticker, pending writes and
// all watchers. It is safe to call more than once.
func (s *Screen) Close() error {
	s.once.Do(func() {
		s.cancel()
		close(s.done)
		<-s.exited
		s.store.Unsubscribe()
		s.runner.Stop()
		s.writes.Wait()

		s.lmu.Lock()
		s.closed = true
		for id, ch := range s.listeners {
			close(ch)
			delete(s.listeners, id)
		}
		s.lmu.Unlock()
		s.logger.Debug("screen closed")
	})
	return nil
}

func (s *Screen) loop() {
	defer close(s.exited)
	for {
		select {
		case <-s.done:
			return
		case cmd := <-s.cmds:
			err := s.handle(cmd)
			if err == nil {
				s.publish()
			}
			cmd.reply <- commandResult{view: s.Last(), err: err}
		case <-s.dirty:
			s.applySnapshot()
			s.publish()
		case <-s.syncErrs:
			s.ui.Loading = false
			s.ui.Online = false
			s.publish()
		case <-s.runner.C():
			if s.runner.Tick() {
				s.onExpire()
			}
			s.publish()
		}
	}
}

func (s *Screen) handle(cmd Command) error {
	switch cmd.Type {
	case CmdRender:
	case CmdSelectTab:
		if !cmd.Tab.Valid() {
			return ErrInvalidTab
		}
		s.ui.ActiveTab = cmd.Tab
	case CmdSelectWorkout:
		if _, ok := s.store.Get(cmd.WorkoutID); !ok {
			return ErrWorkoutNotFound
		}
		s.feedback.Light()
		s.ui.SelectedWorkoutID = cmd.WorkoutID
		s.ui.Editing = false
	case CmdClearSelection:
		s.ui.SelectedWorkoutID = ""
		s.ui.Editing = false
	case CmdSetEditing:
		if cmd.Editing && s.ui.SelectedWorkoutID == "" {
			return ErrNoSelection
		}
		s.ui.Editing = cmd.Editing
	case CmdCreateWorkout:
		s.feedback.Success()
		s.createInBackground()
	case CmdCompleteSet:
		if cmd.ExerciseID != 0 && !s.selectedHasExercise(cmd.ExerciseID) {
			return ErrWorkoutNotFound
		}
		s.feedback.Success()
		if s.runner.Start(s.cfg.DefaultRest) {
			s.onExpire()
		}
	case CmdStartTimer:
		if cmd.Seconds < 0 {
			return ErrNegativeRest
		}
		if s.runner.Start(cmd.Seconds) {
			s.onExpire()
		}
	case CmdToggleTimer:
		s.feedback.Success()
		if s.runner.Toggle() {
			s.onExpire()
		}
	case CmdResetTimer:
		s.runner.Reset()
	default:
		return fmt.Errorf("%w: unknown command %d", domain.ErrValidation, cmd.Type)
	}
	return nil
}

func (s *Screen) selectedHasExercise(id int64) bool {
	plan, ok := s.store.Get(s.ui.SelectedWorkoutID)
	if !ok {
		return false
	}
	for _, ex := range plan.Exercises {
		if ex.ID == id {
			return true
		}
	}
	return false
}

// applySnapshot resolves loading and drops a selection whose plan is gone.
func (s *Screen) applySnapshot() {
	s.ui.Loading = false
	s.ui.Online = true
	if s.ui.SelectedWorkoutID == "" {
		return
	}
	if _, ok := s.store.Get(s.ui.SelectedWorkoutID); !ok {
		s.ui.SelectedWorkoutID = ""
		s.ui.Editing = false
	}
}

func (s *Screen) onExpire() {
	s.feedback.Warning()
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.CounterTimerExpirations.Inc()
	}
	s.logger.Debug("rest timer expired")
}

// createInBackground writes the default plan without waiting for it.
// The plan reaches the view through the subscription.
func (s *Screen) createInBackground() {
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.WriteTimeout)
		defer cancel()
		if _, err := s.store.CreateDefault(ctx, s.userID); err != nil {
			s.logger.Error("create workout", zap.Error(err))
		}
	}()
}

func (s *Screen) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *Screen) markSyncError(err error) {
	select {
	case s.syncErrs <- err:
	default:
	}
}

func (s *Screen) render() View {
	return Render(RenderInput{
		UserID: s.userID,
		Plans:  s.store.Plans(),
		Timer:  s.runner.State(),
		UI:     s.ui,
	})
}

func (s *Screen) publish() {
	v := s.render()
	s.lmu.Lock()
	s.last = v
	s.lmu.Unlock()
	s.broadcast(Event{Type: EventView, View: &v})
}

func (s *Screen) emitHaptic(i haptic.Intensity, _ haptic.Pattern) {
	s.broadcast(Event{Type: EventHaptic, Haptic: i})
}

func (s *Screen) broadcast(ev Event) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	for id, ch := range s.listeners {
		select {
		case ch <- ev:
		default:
			s.logger.Debug("dropping event for slow watcher", zap.Int("watcher", id), zap.String("type", string(ev.Type)))
		}
	}
}

// Last returns the most recently published view.
func (s *Screen) Last() View {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	return s.last
}

// Watch streams events until stop is called or the screen closes. The
// current view is delivered first.
func (s *Screen) Watch() (events <-chan Event, stop func()) {
	ch := make(chan Event, listenerBuffer)
	s.lmu.Lock()
	if s.closed {
		s.lmu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = ch
	v := s.last
	ch <- Event{Type: EventView, View: &v}
	s.lmu.Unlock()

	return ch, func() {
		s.Touch()
		s.lmu.Lock()
		defer s.lmu.Unlock()
		if c, ok := s.listeners[id]; ok {
			delete(s.listeners, id)
			close(c)
		}
	}
}

// Dispatch runs cmd on the command loop and returns the resulting view.
func (s *Screen) Dispatch(ctx context.Context, cmd Command) (View, error) {
	cmd.reply = make(chan commandResult, 1)
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case r := <-cmd.reply:
		return r.view, r.err
	case <-s.exited:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// --- Convenience wrappers around Dispatch ---

func (s *Screen) View(ctx context.Context) (View, error) {
	return s.Dispatch(ctx, Command{Type: CmdRender})
}

func (s *Screen) SelectTab(ctx context.Context, tab Tab) (View, error) {
	return s.Dispatch(ctx, Command{Type: CmdSelectTab, Tab: tab})
}

func (s *Screen) SelectWorkout(ctx context.Context, id string) (View, error) {
	return s.Dispatch(ctx, Command{Type: CmdSelectWorkout, WorkoutID: id})
}

func (s *Screen) ClearSelection(ctx context.Context) (View, error) {
	return s.Dispatch(ctx, Command{Type: CmdClearSelection})
}

func (s *Screen) SetEditing(ctx context.Context, editing bool) (View, error) {
	return s.Dispatch(ctx, Command{Type: CmdSetEditing, Editing: editing})
}

// CreateWorkout schedules creation of the default plan and returns at once.
func (s *Screen) CreateWorkout(ctx context.Context) (View, error) {
	return s.Dispatch(ctx, Command{Type: CmdCreateWorkout})
}

// CompleteSet starts the default rest interval. A non-zero exerciseID must
// belong to the selected plan.
func (s *Screen) CompleteSet(ctx context.Context, exerciseID int64) (View, error) {
	return s.Dispatch(ctx, Command{Type: CmdCompleteSet, ExerciseID: exerciseID})
}

func (s *Screen) StartTimer(ctx context.Context, seconds int) (View, error) {
	return s.Dispatch(ctx, Command{Type: CmdStartTimer, Seconds: seconds})
}

func (s *Screen) ToggleTimer(ctx context.Context) (View, error) {
	return s.Dispatch(ctx, Command{Type: CmdToggleTimer})
}

func (s *Screen) ResetTimer(ctx context.Context) (View, error) {
	return s.Dispatch(ctx, Command{Type: CmdResetTimer})
}

// --- Store operations that bypass UI state ---

// Plans returns the mirrored plans.
func (s *Screen) Plans() []domain.WorkoutPlan {
	return s.store.Plans()
}

// UpdateWorkout edits a plan in the store; the view follows the snapshot.
func (s *Screen) UpdateWorkout(ctx context.Context, id string, upd repository.WorkoutUpdate) error {
	return s.store.Update(ctx, s.userID, id, upd)
}

// DeleteWorkout removes a plan from the store.
func (s *Screen) DeleteWorkout(ctx context.Context, id string) error {
	return s.store.Delete(ctx, s.userID, id)
}
