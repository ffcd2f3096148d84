package api

import (
	"alcyxob/workym/internal/domain"
	"alcyxob/workym/internal/identity"
	"alcyxob/workym/internal/repository"
	"alcyxob/workym/internal/screen"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Constants for context keys
const (
	ContextUserIDKey = "userID"
	ContextTokenKey  = "token"
)

// AuthMiddleware accepts "Authorization: Bearer <token>". Browsers cannot
// set headers on EventSource, so the access_token query parameter is
// accepted as well.
func AuthMiddleware(session identity.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("access_token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				abortWithError(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
				return
			}
			token = parts[1]
		}
		if token == "" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header is missing")
			return
		}

		claims, err := session.Verify(token)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, err.Error())
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextTokenKey, token)
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", c.ClientIP()),
		)
	}
}

// Recovery turns a handler panic into a 500 and logs the stack.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", c.Request.URL.Path),
				)
				abortWithError(c, http.StatusInternalServerError, "internal error")
			}
		}()
		c.Next()
	}
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// respondError maps an error from the layers below to a status code.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrAuth):
		abortWithError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrValidation), errors.Is(err, repository.ErrInvalidPath):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnavailable), errors.Is(err, domain.ErrSync), errors.Is(err, screen.ErrClosed):
		abortWithError(c, http.StatusServiceUnavailable, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

// Helper function to get User ID from context (used by handlers)
func getUserIDFromContext(c *gin.Context) (string, error) {
	idRaw, exists := c.Get(ContextUserIDKey)
	if !exists {
		return "", errors.New("user ID not found in context")
	}
	idStr, ok := idRaw.(string)
	if !ok {
		return "", errors.New("invalid user ID type in context")
	}
	return idStr, nil
}

func getTokenFromContext(c *gin.Context) string {
	return c.GetString(ContextTokenKey)
}
