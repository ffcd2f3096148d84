package api

import (
	"alcyxob/workym/internal/screen"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// TimerHandler drives the caller's rest timer.
type TimerHandler struct {
	screens *screen.Manager
}

func NewTimerHandler(screens *screen.Manager) *TimerHandler {
	return &TimerHandler{screens: screens}
}

// StartTimerRequest starts a countdown of Seconds. Without Seconds the
// default rest interval runs, as after completing a set of ExerciseID.
type StartTimerRequest struct {
	Seconds    *int  `json:"seconds"`
	ExerciseID int64 `json:"exerciseId"`
}

// Start starts the rest timer.
// @Router /timer/start [post]
func (h *TimerHandler) Start(c *gin.Context) {
	var req StartTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	s, ok := screenFor(c, h.screens)
	if !ok {
		return
	}
	var (
		v   screen.View
		err error
	)
	if req.Seconds != nil {
		v, err = s.StartTimer(c.Request.Context(), *req.Seconds)
	} else {
		v, err = s.CompleteSet(c.Request.Context(), req.ExerciseID)
	}
	respondView(c, v, err)
}

// Toggle pauses or resumes the timer.
// @Router /timer/toggle [post]
func (h *TimerHandler) Toggle(c *gin.Context) {
	s, ok := screenFor(c, h.screens)
	if !ok {
		return
	}
	v, err := s.ToggleTimer(c.Request.Context())
	respondView(c, v, err)
}

// Reset re-arms the timer with the default duration.
// @Router /timer/reset [post]
func (h *TimerHandler) Reset(c *gin.Context) {
	s, ok := screenFor(c, h.screens)
	if !ok {
		return
	}
	v, err := s.ResetTimer(c.Request.Context())
	respondView(c, v, err)
}
