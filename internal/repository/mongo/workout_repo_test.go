package mongo

import (
	"alcyxob/workym/internal/domain"
	"alcyxob/workym/internal/repository"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestWorkoutDocument_ToDomain(t *testing.T) {
	oid := primitive.NewObjectID()
	doc := workoutDocument{ID: oid, OwnerID: "u1", Title: "X"}
	plan := doc.toDomain()
	assert.Equal(t, oid.Hex(), plan.ID)
	assert.Equal(t, "u1", plan.OwnerID)
	assert.NotNil(t, plan.Exercises, "missing exercises decode as an empty list")

	doc.Exercises = []domain.Exercise{{ID: 2, Name: "B"}, {ID: 1, Name: "A"}}
	assert.Equal(t, doc.Exercises, doc.toDomain().Exercises)
}

func TestChangeStreamSubscription_Relevant(t *testing.T) {
	p := repository.NewDocumentPath("artifacts", "app", "u1")
	mine := primitive.NewObjectID()
	other := primitive.NewObjectID()
	s := &changeStreamSubscription{path: p, known: map[primitive.ObjectID]struct{}{mine: {}}}

	insertMine := changeEvent{OperationType: "insert", FullDocument: &workoutDocument{Path: p.String()}}
	insertOther := changeEvent{OperationType: "insert", FullDocument: &workoutDocument{Path: "artifacts/app/users/u2/workouts"}}
	assert.True(t, s.relevant(insertMine))
	assert.False(t, s.relevant(insertOther))

	deleteMine := changeEvent{OperationType: "delete"}
	deleteMine.DocumentKey.ID = mine
	deleteOther := changeEvent{OperationType: "delete"}
	deleteOther.DocumentKey.ID = other
	assert.True(t, s.relevant(deleteMine))
	assert.False(t, s.relevant(deleteOther))
}

// fakeStream replays values pushed on feed. A changeEvent decodes into the
// caller's value, an error is returned from Decode.
type fakeStream struct {
	feed   chan any
	cur    any
	err    error
	closed bool
}

func newFakeStream() *fakeStream { return &fakeStream{feed: make(chan any)} }

func (f *fakeStream) Next(ctx context.Context) bool {
	select {
	case v, ok := <-f.feed:
		if !ok {
			return false
		}
		f.cur = v
		return true
	case <-ctx.Done():
		return false
	}
}

func (f *fakeStream) Decode(val interface{}) error {
	if err, ok := f.cur.(error); ok {
		return err
	}
	*val.(*changeEvent) = f.cur.(changeEvent)
	return nil
}

func (f *fakeStream) Err() error                  { return f.err }
func (f *fakeStream) Close(context.Context) error { f.closed = true; return nil }

// fakeListing serves whatever plans the test last set.
type fakeListing struct {
	mu    sync.Mutex
	plans []domain.WorkoutPlan
}

func (l *fakeListing) set(plans ...domain.WorkoutPlan) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.plans = plans
}

func (l *fakeListing) list(context.Context, repository.DocumentPath) ([]domain.WorkoutPlan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.WorkoutPlan{}, l.plans...), nil
}

func nextEvent(t *testing.T, sub *changeStreamSubscription) repository.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "events closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}
	return repository.Event{}
}

func TestChangeStreamSubscription_EmitsListingPerChange(t *testing.T) {
	p := repository.NewDocumentPath("artifacts", "app", "u1")
	stream := newFakeStream()
	listing := &fakeListing{}
	ctx, cancel := context.WithCancel(context.Background())
	sub := startSubscription(ctx, cancel, p, stream, listing.list)
	defer sub.Close()

	ev := nextEvent(t, sub)
	require.NoError(t, ev.Err)
	assert.Empty(t, ev.Plans)

	oid := primitive.NewObjectID()
	listing.set(domain.WorkoutPlan{ID: oid.Hex(), Title: "PUSH"})
	stream.feed <- changeEvent{OperationType: "insert", FullDocument: &workoutDocument{ID: oid, Path: p.String()}}
	ev = nextEvent(t, sub)
	require.Len(t, ev.Plans, 1)
	assert.Equal(t, "PUSH", ev.Plans[0].Title)

	stream.feed <- changeEvent{OperationType: "insert", FullDocument: &workoutDocument{Path: "artifacts/app/users/u2/workouts"}}
	stream.feed <- errors.New("bad document")
	ev = nextEvent(t, sub)
	assert.EqualError(t, ev.Err, "bad document", "the other user's insert emitted nothing")

	listing.set()
	deleted := changeEvent{OperationType: "delete"}
	deleted.DocumentKey.ID = oid
	stream.feed <- deleted
	ev = nextEvent(t, sub)
	require.NoError(t, ev.Err)
	assert.Empty(t, ev.Plans)

	stream.feed <- deleted
	stream.err = errors.New("stream lost")
	close(stream.feed)
	ev = nextEvent(t, sub)
	assert.EqualError(t, ev.Err, "stream lost", "a delete of an unknown id emitted nothing")

	_, ok := <-sub.Events()
	assert.False(t, ok)
	require.NoError(t, sub.Close())
	assert.True(t, stream.closed)
}

func TestChangeStreamSubscription_CloseStopsReader(t *testing.T) {
	p := repository.NewDocumentPath("artifacts", "app", "u1")
	stream := newFakeStream()
	listing := &fakeListing{}
	ctx, cancel := context.WithCancel(context.Background())
	sub := startSubscription(ctx, cancel, p, stream, listing.list)

	nextEvent(t, sub)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.True(t, stream.closed)
}
