package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	httpAdapter "github.com/hiveboard/taskboard-backend/internal/adapters/primary/http"
	mw "github.com/hiveboard/taskboard-backend/internal/adapters/primary/http/middleware"
	"github.com/hiveboard/taskboard-backend/internal/adapters/primary/websocket"
	"github.com/hiveboard/taskboard-backend/internal/adapters/secondary/postgres"
	"github.com/hiveboard/taskboard-backend/internal/auth"
	"github.com/hiveboard/taskboard-backend/internal/config"
	"github.com/hiveboard/taskboard-backend/internal/core/services"
	"github.com/hiveboard/taskboard-backend/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	// 3. Run Migrations
	if err := runMigrations(cfg); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	// 4. Initialize Database Pool
	ctx := context.Background()
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database connection established")

	// 5. Repositories (Secondary Adapters)
	projectRepo := postgres.NewProjectRepository(pool)
	groupRepo := postgres.NewTaskGroupRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)
	memberRepo := postgres.NewMembershipRepository(pool)
	feed := postgres.NewChangeFeed(pool)
	cursors := postgres.NewCursorStore(pool)
	txManager := postgres.NewTransactionManager(pool)

	// 6. Real-time Pipeline (Hub, Composer, Observer)
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)
	authorizer := services.NewMembershipJoinAuthorizer(memberRepo)
	hub := websocket.NewHub(authorizer, logger)
	go hub.Run()

	composer := services.NewEventComposer(taskRepo, groupRepo, cfg.ChangeFeed.RouteCacheTTL, logger)
	observer := services.NewChangeObserver(feed, cursors, composer, hub, services.ObserverConfig{
		BatchSize:    cfg.ChangeFeed.BatchSize,
		PollInterval: cfg.ChangeFeed.PollInterval,
		BackoffBase:  cfg.ChangeFeed.BackoffBase,
		BackoffMax:   cfg.ChangeFeed.BackoffMax,
		MaxFailures:  cfg.ChangeFeed.MaxFailures,
	}, logger)

	observerCtx, stopObserver := context.WithCancel(ctx)
	observerDone := make(chan struct{})
	go func() {
		defer close(observerDone)
		observer.Run(observerCtx)
	}()

	// 7. Services (Core)
	projectService := services.NewProjectService(projectRepo, groupRepo, taskRepo, memberRepo, feed, txManager)
	groupService := services.NewTaskGroupService(groupRepo, taskRepo, memberRepo, feed, txManager)
	taskService := services.NewTaskService(taskRepo, groupRepo, memberRepo, feed, txManager)

	// 8. Handlers (Primary Adapters)
	errorHandler := httpAdapter.NewErrorHandler(logger)
	groupHandler := httpAdapter.NewGroupHandler(groupService, errorHandler, logger)
	projectHandler := httpAdapter.NewProjectHandler(projectService, groupHandler, errorHandler, logger)
	taskHandler := httpAdapter.NewTaskHandler(taskService, errorHandler, logger)
	wsHandler := httpAdapter.NewWebSocketHandler(hub, tokenManager, cfg, logger)
	healthHandler := httpAdapter.NewHealthHandler(pool, hub, observer, composer, cfg.App.Version)

	// 9. Rate Limiter
	var rateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
	}

	// 10. Setup Router
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.WebSocket.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if rateLimiter != nil {
		r.Use(rateLimiter.Middleware)
	}

	// Health check endpoints (outside /api/v1 for standard probe paths)
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/health/live", healthHandler.HandleLiveness)
	r.Get("/health/ready", healthHandler.HandleReadiness)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket route (Authentication is handled inside the handler)
		r.Get("/ws", wsHandler.ServeHTTP)

		// Protected REST routes
		r.Group(func(r chi.Router) {
			r.Use(mw.JWTMiddleware(tokenManager))
			r.Route("/projects", projectHandler.RegisterRoutes)
			r.Route("/tasks", taskHandler.RegisterRoutes)
		})
	})

	// 11. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	// Stop the change watchers after the HTTP surface is drained so
	// in-flight mutations still get their events broadcast.
	stopObserver()
	select {
	case <-observerDone:
	case <-shutdownCtx.Done():
		logger.Warn("observer did not stop before shutdown deadline")
	}

	logger.Info("server shutdown complete")
}

// runMigrations applies any pending schema migrations before the pool
// opens.
func runMigrations(cfg *config.Config) error {
	m, err := migrate.New("file://"+cfg.Database.MigrationsPath, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
