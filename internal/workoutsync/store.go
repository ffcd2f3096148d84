// Package workoutsync mirrors a user's remote workout collection into a
// local, live-updated list and forwards writes to the document store.
package workoutsync

import (
	"alcyxob/workym/internal/domain"
	"alcyxob/workym/internal/metrics"
	"alcyxob/workym/internal/repository"
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Config holds the dependencies and hooks of a Store.
type Config struct {
	Repo      repository.WorkoutRepository
	Namespace string
	AppID     string
	Logger    *zap.Logger
	Metrics   *metrics.Manager

	// OnChange runs on the subscription goroutine after each applied snapshot.
	// It must not block.
	OnChange func()
	// OnError runs when the subscription cannot be opened or reports an
	// error. The error wraps domain.ErrSync. It must not block.
	OnError func(error)
}

// Store owns the local mirror of one user's workout collection. The
// mirror is replaced wholesale on every snapshot and is never patched.
type Store struct {
	cfg    Config
	logger *zap.Logger

	mu    sync.RWMutex
	plans []domain.WorkoutPlan
	index map[string]int

	subMu  sync.Mutex
	userID string
	sub    repository.Subscription
	pumpWG sync.WaitGroup
}

// New creates a Store. Repo is required.
func New(cfg Config) *Store {
	if cfg.Repo == nil {
		panic("workoutsync: repository is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		cfg:    cfg,
		logger: logger,
		plans:  []domain.WorkoutPlan{},
		index:  map[string]int{},
	}
}

// Path returns the document path of userID's workouts.
func (s *Store) Path(userID string) repository.DocumentPath {
	return repository.NewDocumentPath(s.cfg.Namespace, s.cfg.AppID, userID)
}

// Subscribe starts mirroring userID's collection. Subscribing again for the
// same user is a no-op; subscribing for another user first tears down the
// current subscription and clears the mirror.
func (s *Store) Subscribe(ctx context.Context, userID string) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.sub != nil && s.userID == userID {
		return nil
	}
	s.unsubscribeLocked()
	s.Apply(nil)

	sub, err := s.cfg.Repo.Subscribe(ctx, s.Path(userID))
	if err != nil {
		err = fmt.Errorf("%w: subscribe %s: %v", domain.ErrSync, s.Path(userID), err)
		s.reportError(err)
		return err
	}
	s.userID = userID
	s.sub = sub

	s.pumpWG.Add(1)
	go s.pump(userID, sub)
	return nil
}

// Unsubscribe stops the live subscription, if any, and waits for it.
func (s *Store) Unsubscribe() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.unsubscribeLocked()
}

func (s *Store) unsubscribeLocked() {
	if s.sub == nil {
		return
	}
	if err := s.sub.Close(); err != nil {
		s.logger.Warn("closing workout subscription", zap.String("uid", s.userID), zap.Error(err))
	}
	s.pumpWG.Wait()
	s.sub = nil
	s.userID = ""
}

// UserID returns the user currently subscribed to, or "".
func (s *Store) UserID() string {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return s.userID
}

func (s *Store) pump(userID string, sub repository.Subscription) {
	defer s.pumpWG.Done()
	for ev := range sub.Events() {
		if ev.Err != nil {
			if errors.Is(ev.Err, context.Canceled) {
				continue
			}
			s.reportError(fmt.Errorf("%w: %s: %v", domain.ErrSync, s.Path(userID), ev.Err))
			continue
		}
		s.Apply(ev.Plans)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.CounterSnapshots.Inc()
		}
		if s.cfg.OnChange != nil {
			s.cfg.OnChange()
		}
	}
}

func (s *Store) reportError(err error) {
	s.logger.Error("workout sync error", zap.Error(err))
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.CounterSyncErrors.Inc()
	}
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}

// Apply replaces the mirror with a copy of plans, keeping their order.
func (s *Store) Apply(plans []domain.WorkoutPlan) {
	next := domain.ClonePlans(plans)
	if next == nil {
		next = []domain.WorkoutPlan{}
	}
	index := make(map[string]int, len(next))
	for i, p := range next {
		index[p.ID] = i
	}

	s.mu.Lock()
	s.plans = next
	s.index = index
	s.mu.Unlock()
}

// Plans returns a copy of the mirror in snapshot order.
func (s *Store) Plans() []domain.WorkoutPlan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ClonePlans(s.plans)
}

// Get returns the mirrored plan with the given ID.
func (s *Store) Get(id string) (domain.WorkoutPlan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return domain.WorkoutPlan{}, false
	}
	return s.plans[i].Clone(), true
}

// Len returns the number of mirrored plans.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.plans)
}

// Create adds plan under userID's collection and returns the new ID.
// The mirror is not touched: the new plan shows up with the next snapshot.
func (s *Store) Create(ctx context.Context, userID string, plan *domain.WorkoutPlan) (string, error) {
	id, err := s.cfg.Repo.Add(ctx, s.Path(userID), plan)
	if err != nil {
		return "", fmt.Errorf("create workout: %w", err)
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.CounterWorkoutsCreated.Inc()
	}
	s.logger.Info("workout created", zap.String("uid", userID), zap.String("workout_id", id))
	return id, nil
}

// CreateDefault creates the placeholder plan.
func (s *Store) CreateDefault(ctx context.Context, userID string) (string, error) {
	return s.Create(ctx, userID, domain.NewDefaultPlan())
}

// Update changes fields of an existing plan.
func (s *Store) Update(ctx context.Context, userID, id string, upd repository.WorkoutUpdate) error {
	if err := s.cfg.Repo.Update(ctx, s.Path(userID), id, upd); err != nil {
		return fmt.Errorf("update workout %s: %w", id, err)
	}
	return nil
}

// Delete removes a plan by ID.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	if err := s.cfg.Repo.Delete(ctx, s.Path(userID), id); err != nil {
		return fmt.Errorf("delete workout %s: %w", id, err)
	}
	return nil
}
