package api

import (
	"alcyxob/workym/internal/screen"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ViewHandler serves the rendered screen and its UI actions.
type ViewHandler struct {
	screens *screen.Manager
	logger  *zap.Logger
}

func NewViewHandler(screens *screen.Manager, logger *zap.Logger) *ViewHandler {
	return &ViewHandler{screens: screens, logger: logger}
}

type SelectTabRequest struct {
	Tab screen.Tab `json:"tab" binding:"required"`
}

type SetEditingRequest struct {
	Editing bool `json:"editing"`
}

// GetView returns the current view.
// @Router /view [get]
func (h *ViewHandler) GetView(c *gin.Context) {
	s, ok := screenFor(c, h.screens)
	if !ok {
		return
	}
	v, err := s.View(c.Request.Context())
	respondView(c, v, err)
}

// Stream pushes view and haptic events as server-sent events until the
// client goes away or the screen closes.
// @Router /view/stream [get]
func (h *ViewHandler) Stream(c *gin.Context) {
	s, ok := screenFor(c, h.screens)
	if !ok {
		return
	}
	events, stop := s.Watch()
	defer stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		}
	})
	h.logger.Debug("view stream ended", zap.String("uid", s.UserID()))
}

// SelectTab switches the active tab.
// @Router /tab [post]
func (h *ViewHandler) SelectTab(c *gin.Context) {
	var req SelectTabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	s, ok := screenFor(c, h.screens)
	if !ok {
		return
	}
	v, err := s.SelectTab(c.Request.Context(), req.Tab)
	respondView(c, v, err)
}

// SetEditing turns edit mode of the selected plan on or off.
// @Router /editing [post]
func (h *ViewHandler) SetEditing(c *gin.Context) {
	var req SetEditingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	s, ok := screenFor(c, h.screens)
	if !ok {
		return
	}
	v, err := s.SetEditing(c.Request.Context(), req.Editing)
	respondView(c, v, err)
}

// ClearSelection returns to the plan list.
// @Router /selection [delete]
func (h *ViewHandler) ClearSelection(c *gin.Context) {
	s, ok := screenFor(c, h.screens)
	if !ok {
		return
	}
	v, err := s.ClearSelection(c.Request.Context())
	respondView(c, v, err)
}

func respondView(c *gin.Context, v screen.View, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
