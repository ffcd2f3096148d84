package api

import (
	"alcyxob/workym/internal/identity"
	"alcyxob/workym/internal/metrics"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AuthHandler exposes the identity session.
type AuthHandler struct {
	session identity.Session
	metrics *metrics.Manager
}

func NewAuthHandler(session identity.Session, m *metrics.Manager) *AuthHandler {
	return &AuthHandler{session: session, metrics: m}
}

type TokenSignInRequest struct {
	Token string `json:"token" binding:"required"`
}

// SignInAnonymous creates an anonymous user.
// @Router /auth/anonymous [post]
func (h *AuthHandler) SignInAnonymous(c *gin.Context) {
	in, err := h.session.SignInAnonymous(c.Request.Context())
	h.count("anonymous", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, in)
}

// SignInWithToken exchanges a previously issued token for a fresh one.
// @Router /auth/token [post]
func (h *AuthHandler) SignInWithToken(c *gin.Context) {
	var req TokenSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	in, err := h.session.SignInWithToken(c.Request.Context(), req.Token)
	h.count("token", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, in)
}

// SignOut revokes the caller's token.
// @Router /auth/signout [post]
func (h *AuthHandler) SignOut(c *gin.Context) {
	if err := h.session.SignOut(c.Request.Context(), getTokenFromContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) count(method string, err error) {
	if h.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	h.metrics.CounterSignIns.WithLabelValues(method, result).Inc()
}
