// internal/repository/mongo/workout_repo.go
package mongo

import (
	"alcyxob/workym/internal/domain"
	"alcyxob/workym/internal/repository"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const workoutCollectionName = "workouts"

// workoutDocument is the stored shape of a domain.WorkoutPlan. Path holds
// the full collection path so one Mongo collection serves every user.
type workoutDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Path      string             `bson:"path"`
	OwnerID   string             `bson:"ownerId"`
	Title     string             `bson:"title"`
	Exercises []domain.Exercise  `bson:"exercises"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d workoutDocument) toDomain() domain.WorkoutPlan {
	exercises := d.Exercises
	if exercises == nil {
		exercises = []domain.Exercise{}
	}
	return domain.WorkoutPlan{
		ID:        d.ID.Hex(),
		OwnerID:   d.OwnerID,
		Title:     d.Title,
		Exercises: exercises,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// mongoWorkoutRepository implements repository.WorkoutRepository
type mongoWorkoutRepository struct {
	collection *mongo.Collection
}

// NewMongoWorkoutRepository creates a new Workout repository.
func NewMongoWorkoutRepository(db *mongo.Database) repository.WorkoutRepository {
	return &mongoWorkoutRepository{
		collection: db.Collection(workoutCollectionName),
	}
}

// Add inserts a new workout plan under p and returns its ID.
func (r *mongoWorkoutRepository) Add(ctx context.Context, p repository.DocumentPath, plan *domain.WorkoutPlan) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	if err := plan.Validate(); err != nil {
		return "", err
	}
	now := time.Now().UTC()
	doc := workoutDocument{
		ID:        primitive.NewObjectID(),
		Path:      p.String(),
		OwnerID:   p.UserID,
		Title:     plan.Title,
		Exercises: plan.Exercises,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return "", err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errors.New("failed to convert inserted workout ID")
	}
	return insertedID.Hex(), nil
}

// Update sets the fields present in upd on the plan with the given ID.
func (r *mongoWorkoutRepository) Update(ctx context.Context, p repository.DocumentPath, id string, upd repository.WorkoutUpdate) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := upd.Validate(); err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("workout %s: %w", id, repository.ErrNotFound)
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Exercises != nil {
		set["exercises"] = upd.Exercises
	}

	// The path filter keeps a user from touching another user's plan.
	filter := bson.M{"_id": oid, "path": p.String()}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("%w: %v", repository.ErrUpdateFailed, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("workout %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

// Delete removes the plan with the given ID from p.
func (r *mongoWorkoutRepository) Delete(ctx context.Context, p repository.DocumentPath, id string) error {
	if err := p.Validate(); err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("workout %s: %w", id, repository.ErrNotFound)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid, "path": p.String()})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("workout %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

// List retrieves every plan under p in creation order.
func (r *mongoWorkoutRepository) List(ctx context.Context, p repository.DocumentPath) ([]domain.WorkoutPlan, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"path": p.String()}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []workoutDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	plans := make([]domain.WorkoutPlan, 0, len(docs))
	for _, d := range docs {
		plans = append(plans, d.toDomain())
	}
	return plans, nil
}

// Subscribe opens a change stream on the workouts collection and emits a
// full listing of p initially and after every change that touches p.
// The stream is opened before the first listing so no write is missed.
func (r *mongoWorkoutRepository) Subscribe(ctx context.Context, p repository.DocumentPath) (repository.Subscription, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	key := p.String()
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "fullDocument.path", Value: key}},
			bson.D{{Key: "operationType", Value: "delete"}},
		}}}}},
	}
	streamOpts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	subCtx, cancel := context.WithCancel(ctx)
	stream, err := r.collection.Watch(subCtx, pipeline, streamOpts)
	if err != nil {
		cancel()
		return nil, err
	}

	return startSubscription(subCtx, cancel, p, stream, r.List), nil
}

// changeStream is the part of *mongo.ChangeStream a subscription reads.
type changeStream interface {
	Next(ctx context.Context) bool
	Decode(val interface{}) error
	Err() error
	Close(ctx context.Context) error
}

type listFunc func(ctx context.Context, p repository.DocumentPath) ([]domain.WorkoutPlan, error)

func startSubscription(ctx context.Context, cancel context.CancelFunc, p repository.DocumentPath, stream changeStream, list listFunc) *changeStreamSubscription {
	sub := &changeStreamSubscription{
		list:   list,
		path:   p,
		stream: stream,
		events: make(chan repository.Event),
		done:   make(chan struct{}),
		cancel: cancel,
		known:  make(map[primitive.ObjectID]struct{}),
	}
	go sub.run(ctx)
	return sub
}

// changeEvent is the subset of a change stream event we read.
type changeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID primitive.ObjectID `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument *workoutDocument `bson:"fullDocument"`
}

type changeStreamSubscription struct {
	list   listFunc
	path   repository.DocumentPath
	stream changeStream
	events chan repository.Event
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once

	// IDs in the last emitted snapshot. Delete events carry no document,
	// so they are attributed to this path only through this set.
	known map[primitive.ObjectID]struct{}
}

func (s *changeStreamSubscription) Events() <-chan repository.Event {
	return s.events
}

// Close cancels the stream and waits until the reader goroutine is gone.
func (s *changeStreamSubscription) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}

func (s *changeStreamSubscription) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.stream.Close(closeCtx)
	}()

	if !s.emitListing(ctx) {
		return
	}
	for s.stream.Next(ctx) {
		var ev changeEvent
		if err := s.stream.Decode(&ev); err != nil {
			if !s.send(ctx, repository.Event{Err: err}) {
				return
			}
			continue
		}
		if !s.relevant(ev) {
			continue
		}
		if !s.emitListing(ctx) {
			return
		}
	}
	if err := s.stream.Err(); err != nil && ctx.Err() == nil {
		s.send(ctx, repository.Event{Err: err})
	}
}

func (s *changeStreamSubscription) relevant(ev changeEvent) bool {
	if ev.FullDocument != nil {
		return ev.FullDocument.Path == s.path.String()
	}
	_, ok := s.known[ev.DocumentKey.ID]
	return ok
}

func (s *changeStreamSubscription) emitListing(ctx context.Context) bool {
	plans, err := s.list(ctx, s.path)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		return s.send(ctx, repository.Event{Err: err})
	}
	s.known = make(map[primitive.ObjectID]struct{}, len(plans))
	for _, p := range plans {
		if oid, err := primitive.ObjectIDFromHex(p.ID); err == nil {
			s.known[oid] = struct{}{}
		}
	}
	return s.send(ctx, repository.Event{Plans: plans})
}

func (s *changeStreamSubscription) send(ctx context.Context, ev repository.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// EnsureWorkoutIndexes creates necessary indexes. Call during startup.
func EnsureWorkoutIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Listing a user's collection in creation order
			Keys:    bson.D{{Key: "path", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "ownerId", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
