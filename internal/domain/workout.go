package domain

import (
	"fmt"
	"time"
)

// DefaultPlanTitle is the label given to plans created from the "+" action.
const DefaultPlanTitle = "NUOVO ALLENAMENTO"

// Placeholder exercise values used by NewDefaultPlan.
const (
	DefaultExerciseName = "Esercizio"
	DefaultSetsNum      = 3
	DefaultRepsNum      = 10
)

// WorkoutPlan is a named, ordered list of exercises owned by one user.
// ID is assigned by the document store on creation and never changes.
type WorkoutPlan struct {
	ID        string     `bson:"-" json:"id"`
	OwnerID   string     `bson:"ownerId" json:"-"`
	Title     string     `bson:"title" json:"title"`
	Exercises []Exercise `bson:"exercises" json:"exercises"` // Display order
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// Exercise is a single entry of a WorkoutPlan.
type Exercise struct {
	ID      int64  `bson:"id" json:"id"`
	Name    string `bson:"name" json:"name"`
	SetsNum int    `bson:"setsNum" json:"setsNum"`
	RepsNum int    `bson:"repsNum" json:"repsNum"`
}

// NewDefaultPlan builds the placeholder plan: one 3x10 exercise.
func NewDefaultPlan() *WorkoutPlan {
	return &WorkoutPlan{
		Title: DefaultPlanTitle,
		Exercises: []Exercise{
			NewExercise(DefaultExerciseName, DefaultSetsNum, DefaultRepsNum),
		},
	}
}

// NewExercise returns an exercise with a freshly issued ID.
func NewExercise(name string, sets, reps int) Exercise {
	return Exercise{
		ID:      NextExerciseID(),
		Name:    name,
		SetsNum: sets,
		RepsNum: reps,
	}
}

// Validate checks the fields a plan must carry before it is persisted.
func (p *WorkoutPlan) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: plan is nil", ErrValidation)
	}
	if p.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	return ValidateExercises(p.Exercises)
}

// ValidateExercises checks volume values and ID uniqueness within one plan.
func ValidateExercises(exercises []Exercise) error {
	seen := make(map[int64]struct{}, len(exercises))
	for i, ex := range exercises {
		if ex.SetsNum < 1 || ex.RepsNum < 1 {
			return fmt.Errorf("%w: exercise[%d] needs positive setsNum and repsNum", ErrValidation, i)
		}
		if _, dup := seen[ex.ID]; dup {
			return fmt.Errorf("%w: exercise[%d] duplicate id %d", ErrValidation, i, ex.ID)
		}
		seen[ex.ID] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy so callers never share the exercise slice.
func (p WorkoutPlan) Clone() WorkoutPlan {
	out := p
	if p.Exercises != nil {
		out.Exercises = make([]Exercise, len(p.Exercises))
		copy(out.Exercises, p.Exercises)
	}
	return out
}

// ClonePlans deep-copies a slice of plans preserving order.
func ClonePlans(plans []WorkoutPlan) []WorkoutPlan {
	if plans == nil {
		return nil
	}
	out := make([]WorkoutPlan, len(plans))
	for i := range plans {
		out[i] = plans[i].Clone()
	}
	return out
}
