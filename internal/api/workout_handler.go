package api

import (
	"alcyxob/workym/internal/domain"
	"alcyxob/workym/internal/repository"
	"alcyxob/workym/internal/screen"
	"alcyxob/workym/internal/storage"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// WorkoutHandler serves the workout collection of the caller.
type WorkoutHandler struct {
	screens  *screen.Manager
	exporter *storage.PlanExporter
}

func NewWorkoutHandler(screens *screen.Manager, exporter *storage.PlanExporter) *WorkoutHandler {
	return &WorkoutHandler{screens: screens, exporter: exporter}
}

// --- DTOs ---

type ExerciseRequest struct {
	ID      int64  `json:"id"`
	Name    string `json:"name" binding:"required"`
	SetsNum int    `json:"setsNum" binding:"min=1"`
	RepsNum int    `json:"repsNum" binding:"min=1"`
}

type UpdateWorkoutRequest struct {
	Title     *string           `json:"title"`
	Exercises []ExerciseRequest `json:"exercises" binding:"omitempty,dive"`
}

// toUpdate keeps exercise IDs sent by the client and issues new ones for
// exercises that have none.
func (r UpdateWorkoutRequest) toUpdate() repository.WorkoutUpdate {
	upd := repository.WorkoutUpdate{Title: r.Title}
	if r.Exercises != nil {
		upd.Exercises = make([]domain.Exercise, 0, len(r.Exercises))
		for _, ex := range r.Exercises {
			if ex.ID == 0 {
				upd.Exercises = append(upd.Exercises, domain.NewExercise(ex.Name, ex.SetsNum, ex.RepsNum))
				continue
			}
			upd.Exercises = append(upd.Exercises, domain.Exercise{ID: ex.ID, Name: ex.Name, SetsNum: ex.SetsNum, RepsNum: ex.RepsNum})
		}
	}
	return upd
}

// --- Handler Methods ---

// ListWorkouts returns the mirrored plans in creation order.
// @Router /workouts [get]
func (h *WorkoutHandler) ListWorkouts(c *gin.Context) {
	s, ok := screenFor(c, h.screens)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Plans())
}

// CreateWorkout schedules the default plan. The new plan reaches clients
// through the view once the store confirms it.
// @Router /workouts [post]
func (h *WorkoutHandler) CreateWorkout(c *gin.Context) {
	s, ok := screenFor(c, h.screens)
	if !ok {
		return
	}
	v, err := s.CreateWorkout(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, v)
}

// UpdateWorkout changes the title and/or the exercises of a plan.
// @Router /workouts/{id} [patch]
func (h *WorkoutHandler) UpdateWorkout(c *gin.Context) {
	var req UpdateWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	s, ok := screenFor(c, h.screens)
	if !ok {
		return
	}
	if err := s.UpdateWorkout(c.Request.Context(), c.Param("id"), req.toUpdate()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteWorkout removes a plan.
// @Router /workouts/{id} [delete]
func (h *WorkoutHandler) DeleteWorkout(c *gin.Context) {
	s, ok := screenFor(c, h.screens)
	if !ok {
		return
	}
	if err := s.DeleteWorkout(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SelectWorkout opens a plan's detail.
// @Router /workouts/{id}/select [post]
func (h *WorkoutHandler) SelectWorkout(c *gin.Context) {
	s, ok := screenFor(c, h.screens)
	if !ok {
		return
	}
	v, err := s.SelectWorkout(c.Request.Context(), c.Param("id"))
	respondView(c, v, err)
}

// ExportWorkouts uploads the caller's plans and returns a download link.
// @Router /workouts/export [post]
func (h *WorkoutHandler) ExportWorkouts(c *gin.Context) {
	if h.exporter == nil {
		respondError(c, fmt.Errorf("%w: plan export is not configured", domain.ErrUnavailable))
		return
	}
	s, ok := screenFor(c, h.screens)
	if !ok {
		return
	}
	out, err := h.exporter.Export(c.Request.Context(), s.UserID(), s.Plans())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}
