// Package memory implements the repository interfaces in process memory.
// It backs tests and the "memory" database driver used for local runs.
package memory

import (
	"alcyxob/workym/internal/domain"
	"alcyxob/workym/internal/repository"
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkoutRepository keeps one ordered collection per document path and
// fans every change out to live subscribers as a full snapshot.
type WorkoutRepository struct {
	mu           sync.Mutex
	collections  map[string][]domain.WorkoutPlan
	subscribers  map[string]map[*feed]struct{}
	subscribeErr error
}

var _ repository.WorkoutRepository = (*WorkoutRepository)(nil)

// NewWorkoutRepository creates an empty in-memory workout store.
func NewWorkoutRepository() *WorkoutRepository {
	return &WorkoutRepository{
		collections: make(map[string][]domain.WorkoutPlan),
		subscribers: make(map[string]map[*feed]struct{}),
	}
}

// FailSubscribe makes every following Subscribe call return err (nil resets).
func (r *WorkoutRepository) FailSubscribe(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribeErr = err
}

// InjectError delivers err to every live subscriber of p.
func (r *WorkoutRepository) InjectError(p repository.DocumentPath, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for f := range r.subscribers[p.String()] {
		f.enqueue(repository.Event{Err: err})
	}
}

// Subscribers returns the number of live subscriptions on p.
func (r *WorkoutRepository) Subscribers(p repository.DocumentPath) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers[p.String()])
}

// Subscribe registers a feed for p and queues the current contents as the
// initial snapshot.
func (r *WorkoutRepository) Subscribe(ctx context.Context, p repository.DocumentPath) (repository.Subscription, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	key := p.String()

	r.mu.Lock()
	if r.subscribeErr != nil {
		err := r.subscribeErr
		r.mu.Unlock()
		return nil, err
	}
	f := newFeed(func(f *feed) {
		r.mu.Lock()
		delete(r.subscribers[key], f)
		r.mu.Unlock()
	})
	if r.subscribers[key] == nil {
		r.subscribers[key] = make(map[*feed]struct{})
	}
	r.subscribers[key][f] = struct{}{}
	f.enqueue(repository.Event{Plans: domain.ClonePlans(r.snapshotLocked(key))})
	r.mu.Unlock()

	go f.pump()
	go func() {
		select {
		case <-ctx.Done():
			_ = f.Close()
		case <-f.done:
		}
	}()
	return f, nil
}

// Add appends plan to the collection and returns the assigned ID.
func (r *WorkoutRepository) Add(ctx context.Context, p repository.DocumentPath, plan *domain.WorkoutPlan) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	if err := plan.Validate(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stored := plan.Clone()
	stored.ID = primitive.NewObjectID().Hex()
	stored.OwnerID = p.UserID
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	key := p.String()
	r.collections[key] = append(r.collections[key], stored)
	r.publishLocked(key)
	return stored.ID, nil
}

// Update applies upd to the plan with the given ID.
func (r *WorkoutRepository) Update(ctx context.Context, p repository.DocumentPath, id string, upd repository.WorkoutUpdate) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := upd.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := p.String()
	plans := r.collections[key]
	for i := range plans {
		if plans[i].ID != id {
			continue
		}
		if upd.Title != nil {
			plans[i].Title = *upd.Title
		}
		if upd.Exercises != nil {
			plans[i].Exercises = append([]domain.Exercise{}, upd.Exercises...)
		}
		plans[i].UpdatedAt = time.Now().UTC()
		r.publishLocked(key)
		return nil
	}
	return fmt.Errorf("workout %s: %w", id, repository.ErrNotFound)
}

// Delete removes the plan with the given ID.
func (r *WorkoutRepository) Delete(ctx context.Context, p repository.DocumentPath, id string) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := p.String()
	plans := r.collections[key]
	for i := range plans {
		if plans[i].ID == id {
			r.collections[key] = append(plans[:i:i], plans[i+1:]...)
			r.publishLocked(key)
			return nil
		}
	}
	return fmt.Errorf("workout %s: %w", id, repository.ErrNotFound)
}

// List returns the current contents of the collection in insertion order.
func (r *WorkoutRepository) List(ctx context.Context, p repository.DocumentPath) ([]domain.WorkoutPlan, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.ClonePlans(r.snapshotLocked(p.String())), nil
}

func (r *WorkoutRepository) snapshotLocked(key string) []domain.WorkoutPlan {
	plans := r.collections[key]
	if plans == nil {
		return []domain.WorkoutPlan{}
	}
	return plans
}

func (r *WorkoutRepository) publishLocked(key string) {
	for f := range r.subscribers[key] {
		f.enqueue(repository.Event{Plans: domain.ClonePlans(r.snapshotLocked(key))})
	}
}

// feed queues events without bound so writers never block on a slow
// reader, and hands them to the reader in order from its own goroutine.
type feed struct {
	mu     sync.Mutex
	queue  []repository.Event
	signal chan struct{}
	events chan repository.Event
	done   chan struct{}
	exited chan struct{}
	once   sync.Once

	unregister func(*feed)
}

func newFeed(unregister func(*feed)) *feed {
	return &feed{
		signal:     make(chan struct{}, 1),
		events:     make(chan repository.Event),
		done:       make(chan struct{}),
		exited:     make(chan struct{}),
		unregister: unregister,
	}
}

func (f *feed) Events() <-chan repository.Event {
	return f.events
}

// Close stops delivery and waits for the pump goroutine to exit.
func (f *feed) Close() error {
	f.once.Do(func() {
		f.unregister(f)
		close(f.done)
	})
	<-f.exited
	return nil
}

func (f *feed) enqueue(ev repository.Event) {
	f.mu.Lock()
	f.queue = append(f.queue, ev)
	f.mu.Unlock()
	select {
	case f.signal <- struct{}{}:
	default:
	}
}

func (f *feed) pump() {
	defer close(f.exited)
	defer close(f.events)
	for {
		f.mu.Lock()
		if len(f.queue) == 0 {
			f.mu.Unlock()
			select {
			case <-f.signal:
				continue
			case <-f.done:
				return
			}
		}
		ev := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()

		select {
		case f.events <- ev:
		case <-f.done:
			return
		}
	}
}
