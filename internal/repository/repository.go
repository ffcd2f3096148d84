package repository

import (
	"alcyxob/workym/internal/domain" // Import our defined domain models
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrInvalidPath  = RepositoryError("invalid document path")
	ErrClosed       = RepositoryError("subscription closed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// DocumentPath addresses one user's workout collection:
// {namespace}/{appId}/users/{userId}/workouts
type DocumentPath struct {
	Namespace string
	AppID     string
	UserID    string
}

// NewDocumentPath builds the workouts path for a user.
func NewDocumentPath(namespace, appID, userID string) DocumentPath {
	return DocumentPath{Namespace: namespace, AppID: appID, UserID: userID}
}

func (p DocumentPath) String() string {
	return path.Join(p.Namespace, p.AppID, "users", p.UserID, "workouts")
}

// Validate rejects empty or slash-bearing segments so paths of two users
// can never alias each other.
func (p DocumentPath) Validate() error {
	for name, seg := range map[string]string{"namespace": p.Namespace, "appId": p.AppID, "userId": p.UserID} {
		if seg == "" || strings.Contains(seg, "/") {
			return fmt.Errorf("%w: bad %s %q", ErrInvalidPath, name, seg)
		}
	}
	return nil
}

// Event is one notification of a live subscription: either a full
// snapshot of the collection or an error reported by the store.
type Event struct {
	Plans []domain.WorkoutPlan
	Err   error
}

// Subscription is a live, cancelable feed of collection snapshots.
// Events is closed once the subscription ends.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// WorkoutUpdate carries the fields to change; nil fields are left as is.
type WorkoutUpdate struct {
	Title     *string
	Exercises []domain.Exercise
}

// IsEmpty reports whether the update would change nothing.
func (u WorkoutUpdate) IsEmpty() bool {
	return u.Title == nil && u.Exercises == nil
}

// Validate checks the fields present in the update.
func (u WorkoutUpdate) Validate() error {
	if u.IsEmpty() {
		return fmt.Errorf("%w: nothing to update", domain.ErrValidation)
	}
	if u.Title != nil && *u.Title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if u.Exercises != nil {
		return domain.ValidateExercises(u.Exercises)
	}
	return nil
}

// WorkoutRepository defines the interface for the remote workout collection.
type WorkoutRepository interface {
	Subscribe(ctx context.Context, p DocumentPath) (Subscription, error)
	Add(ctx context.Context, p DocumentPath, plan *domain.WorkoutPlan) (string, error)
	Update(ctx context.Context, p DocumentPath, id string, upd WorkoutUpdate) error
	Delete(ctx context.Context, p DocumentPath, id string) error
	List(ctx context.Context, p DocumentPath) ([]domain.WorkoutPlan, error)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (string, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Touch(ctx context.Context, id string) error
}

// IsNotFound is a small helper for callers mapping errors to responses.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
