package repository

import (
	"alcyxob/workym/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentPath_String(t *testing.T) {
	p := NewDocumentPath("artifacts", "workym-elite-final", "u1")
	assert.Equal(t, "artifacts/workym-elite-final/users/u1/workouts", p.String())
	assert.NoError(t, p.Validate())
}

func TestDocumentPath_Validate(t *testing.T) {
	assert.ErrorIs(t, NewDocumentPath("artifacts", "app", "").Validate(), ErrInvalidPath)
	assert.ErrorIs(t, NewDocumentPath("artifacts", "app", "a/b").Validate(), ErrInvalidPath)
	assert.ErrorIs(t, NewDocumentPath("", "app", "u").Validate(), ErrInvalidPath)
}

func TestWorkoutUpdate_Validate(t *testing.T) {
	empty := ""
	title := "PUSH"
	assert.ErrorIs(t, WorkoutUpdate{}.Validate(), domain.ErrValidation)
	assert.ErrorIs(t, WorkoutUpdate{Title: &empty}.Validate(), domain.ErrValidation)
	assert.NoError(t, WorkoutUpdate{Title: &title}.Validate())
	assert.NoError(t, WorkoutUpdate{Exercises: []domain.Exercise{}}.Validate())
	assert.ErrorIs(t, WorkoutUpdate{Exercises: []domain.Exercise{{ID: 1}}}.Validate(), domain.ErrValidation)
}
