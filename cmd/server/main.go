package main

import (
	"alcyxob/workym/internal/api"
	"alcyxob/workym/internal/config"
	"alcyxob/workym/internal/haptic"
	"alcyxob/workym/internal/identity"
	"alcyxob/workym/internal/logging"
	"alcyxob/workym/internal/metrics"
	"alcyxob/workym/internal/repository"
	"alcyxob/workym/internal/repository/memory"
	"alcyxob/workym/internal/repository/mongo"
	"alcyxob/workym/internal/screen"
	"alcyxob/workym/internal/storage"
	"alcyxob/workym/internal/timer"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// @title Workym API
// @version 1.0
// @description Workout plans, live view and rest timer for the Workym app.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:     cfg.Log.Level,
		JSON:      cfg.Log.JSON,
		File:      cfg.Log.File,
		MaxSizeMB: cfg.Log.MaxSizeMB,
	})
	if err != nil {
		log.Fatalf("FATAL: Could not build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting workym server",
		zap.String("addr", cfg.Server.Address),
		zap.String("driver", cfg.Database.Driver),
		zap.String("namespace", cfg.Store.Namespace),
		zap.String("app_id", cfg.Store.AppID),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Repositories ---
	var (
		workoutRepo repository.WorkoutRepository
		userRepo    repository.UserRepository
	)
	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory document store, data is lost on exit")
		workoutRepo = memory.NewWorkoutRepository()
		userRepo = memory.NewUserRepository()
	default:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		dbClient, err := mongo.ConnectDB(connectCtx, cfg.Database.URI)
		cancel()
		if err != nil {
			logger.Fatal("could not connect to MongoDB", zap.Error(err))
		}
		defer func() {
			logger.Info("disconnecting MongoDB")
			if err := mongo.DisconnectDB(dbClient); err != nil {
				logger.Error("failed to disconnect MongoDB", zap.Error(err))
			}
		}()
		appDB := dbClient.Database(cfg.Database.Name)

		indexCtx, cancel := context.WithTimeout(ctx, time.Minute)
		mongo.EnsureIndexes(indexCtx, appDB, logger)
		cancel()

		workoutRepo = mongo.NewMongoWorkoutRepository(appDB)
		userRepo = mongo.NewMongoUserRepository(appDB)
	}

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsManager := metrics.NewManager("workym", "server", reg)

	// --- Optional plan export ---
	var exporter *storage.PlanExporter
	if cfg.S3.ExportEnabled() {
		fileStorage, err := storage.NewS3Storage(ctx, cfg.S3, logger)
		if err != nil {
			logger.Fatal("failed to initialize S3 storage", zap.Error(err))
		}
		exporter = storage.NewPlanExporter(fileStorage, cfg.S3.PresignExpiry)
	} else {
		logger.Info("plan export disabled, no s3 bucket configured")
	}

	// --- Identity and screens ---
	session, err := identity.NewTokenSession(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, logger)
	if err != nil {
		logger.Fatal("failed to create session", zap.Error(err))
	}
	screens := screen.NewManager(screen.Config{
		Repo:         workoutRepo,
		Namespace:    cfg.Store.Namespace,
		AppID:        cfg.Store.AppID,
		DefaultRest:  cfg.Timer.DefaultRestSeconds(),
		TickInterval: cfg.Timer.Tick,
		Clock:        timer.RealClock{},
		WriteTimeout: cfg.Sync.WriteTimeout,
		Device:       haptic.LogDevice{Logger: logger},
		Logger:       logger,
		Metrics:      metricsManager,
	}, screen.WithIdleTimeout(cfg.Screen.IdleTimeout))
	go screens.Run(ctx, cfg.Screen.SweepInterval)
	unsubscribe := session.OnAuthStateChange(screens.HandleAuthState)
	defer unsubscribe()

	// --- HTTP ---
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	api.SetupRoutes(router, api.Deps{
		Session:        session,
		Screens:        screens,
		Exporter:       exporter,
		Metrics:        metricsManager,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:         logger,
	})

	// No WriteTimeout: the view stream is long-lived.
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}

	stop()

	// Screens go first so open view streams end and Shutdown can drain.
	if err := screens.Shutdown(); err != nil {
		logger.Error("closing screens", zap.Error(err))
	}
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	// Requests drained during shutdown may have opened new screens.
	if err := screens.Shutdown(); err != nil {
		logger.Error("closing screens", zap.Error(err))
	}
	logger.Info("server exiting")
}
