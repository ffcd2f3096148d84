package api

import (
	"alcyxob/workym/internal/identity"
	"alcyxob/workym/internal/metrics"
	"alcyxob/workym/internal/screen"
	"alcyxob/workym/internal/storage"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Session  identity.Session
	Screens  *screen.Manager
	Exporter *storage.PlanExporter // nil disables export
	Metrics  *metrics.Manager
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	Logger         *zap.Logger
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router.Use(Recovery(logger), RequestLogger(logger))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}

	authHandler := NewAuthHandler(deps.Session, deps.Metrics)
	viewHandler := NewViewHandler(deps.Screens, logger)
	workoutHandler := NewWorkoutHandler(deps.Screens, deps.Exporter)
	timerHandler := NewTimerHandler(deps.Screens)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/anonymous", authHandler.SignInAnonymous)
			authGroup.POST("/token", authHandler.SignInWithToken)
		}
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(deps.Session))
	{
		protected.POST("/auth/signout", authHandler.SignOut)

		protected.GET("/view", viewHandler.GetView)
		protected.GET("/view/stream", viewHandler.Stream)
		protected.POST("/tab", viewHandler.SelectTab)
		protected.POST("/editing", viewHandler.SetEditing)
		protected.DELETE("/selection", viewHandler.ClearSelection)

		workoutGroup := protected.Group("/workouts")
		{
			workoutGroup.GET("", workoutHandler.ListWorkouts)
			workoutGroup.POST("", workoutHandler.CreateWorkout)
			workoutGroup.POST("/export", workoutHandler.ExportWorkouts)
			workoutGroup.PATCH("/:id", workoutHandler.UpdateWorkout)
			workoutGroup.DELETE("/:id", workoutHandler.DeleteWorkout)
			workoutGroup.POST("/:id/select", workoutHandler.SelectWorkout)
		}

		timerGroup := protected.Group("/timer")
		{
			timerGroup.POST("/start", timerHandler.Start)
			timerGroup.POST("/toggle", timerHandler.Toggle)
			timerGroup.POST("/reset", timerHandler.Reset)
		}
	}
}

// screenFor returns the caller's screen, opening it if the server
// restarted since the user signed in.
func screenFor(c *gin.Context, screens *screen.Manager) (*screen.Screen, bool) {
	uid, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return nil, false
	}
	s, err := screens.Open(uid)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return s, true
}
