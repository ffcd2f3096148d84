package mongo

import (
	"alcyxob/workym/internal/domain"
	"alcyxob/workym/internal/repository" // Import the repository interfaces package
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const userCollectionName = "users"

type userDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Anonymous  bool               `bson:"anonymous"`
	CreatedAt  time.Time          `bson:"createdAt"`
	LastSeenAt time.Time          `bson:"lastSeenAt"`
}

// mongoUserRepository implements the repository.UserRepository interface using MongoDB.
type mongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new instance of mongoUserRepository.
// It expects a connected *mongo.Database instance.
func NewMongoUserRepository(db *mongo.Database) repository.UserRepository {
	return &mongoUserRepository{
		collection: db.Collection(userCollectionName),
	}
}

// Create inserts a new user and sets the generated ID on it.
func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) (string, error) {
	now := time.Now().UTC()
	doc := userDocument{
		ID:         primitive.NewObjectID(),
		Anonymous:  user.Anonymous,
		CreatedAt:  now,
		LastSeenAt: now,
	}

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return "", err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errors.New("failed to convert inserted ID")
	}

	user.ID = insertedID.Hex()
	user.CreatedAt = now
	user.LastSeenAt = now
	return user.ID, nil
}

// GetByID retrieves a user by the hex form of its ObjectID.
func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}

	var doc userDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
		}
		return nil, err
	}
	return &domain.User{
		ID:         doc.ID.Hex(),
		Anonymous:  doc.Anonymous,
		CreatedAt:  doc.CreatedAt,
		LastSeenAt: doc.LastSeenAt,
	}, nil
}

// Touch stamps the user's last sign-in time.
func (r *mongoUserRepository) Touch(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"lastSeenAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

// EnsureUserIndexes creates necessary indexes for the users collection.
func EnsureUserIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		// Lets an operator find stale anonymous accounts
		Keys:    bson.D{{Key: "anonymous", Value: 1}, {Key: "lastSeenAt", Value: 1}},
		Options: options.Index(),
	})
	return err
}
