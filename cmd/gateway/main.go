package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mrmushfiq/llm-task-router/internal/gateway/budget"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/executor"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/handlers"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/invoker"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/ledger"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/registry"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/router"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/service"
	"github.com/mrmushfiq/llm-task-router/internal/shared/clock"
	"github.com/mrmushfiq/llm-task-router/internal/shared/config"
	"github.com/mrmushfiq/llm-task-router/internal/shared/database"
	"github.com/mrmushfiq/llm-task-router/internal/shared/logging"
	"github.com/mrmushfiq/llm-task-router/internal/shared/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting llm-task-router",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database (usage ledger + subscription store)
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	// Initialize Redis (subscription cache backend)
	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	clk := clock.Real{}

	// Model catalog and routing table, validated at startup: a route
	// referencing an unregistered model is fatal here.
	reg := registry.Default()
	rt, err := router.New(reg, router.Routes(), router.DefaultChain(), cfg.AllowUnknownTaskTypes, logger)
	if err != nil {
		logger.Fatal("invalid routing table", zap.Error(err))
	}

	aggregator := ledger.NewAggregator(db, clk)

	subCache := budget.NewRedisCache(redisClient, time.Duration(cfg.SubscriptionTTLSeconds)*time.Second)
	reservations := budget.NewReservations()
	gate := budget.NewGate(db, subCache, rt, reg, aggregator, reservations, clk, logger)

	inv := invoker.NewOpenAI(cfg.OpenAIAPIKey)
	exec := executor.New(
		reg, rt, db, inv, clk, logger,
		cfg.MaxRetriesPerModel,
		time.Duration(cfg.BackoffBaseMs)*time.Millisecond,
		time.Duration(cfg.BackoffCapMs)*time.Millisecond,
	)

	svc := service.New(reg, rt, gate, exec, aggregator, logger)

	taskHandler := handlers.NewTaskHandler(svc, clk, logger)
	middleware := handlers.NewMiddleware(db)

	// Setup router
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(120 * time.Second))
	r.Use(middleware.CORSMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)

		r.Post("/tasks/execute", taskHandler.HandleExecute)
		r.Post("/budget/check", taskHandler.HandleBudgetCheck)
		r.Get("/costs/estimate", taskHandler.HandleEstimate)
		r.Get("/costs/daily", taskHandler.HandleDailyCost)
		r.Get("/costs/monthly", taskHandler.HandleMonthlyCost)
		r.Get("/costs/by-task", taskHandler.HandleCostByTask)
		r.Get("/costs/by-model", taskHandler.HandleCostByModel)
		r.Get("/usage/stats", taskHandler.HandleUsageStats)
		r.Post("/subscription/invalidate", taskHandler.HandleInvalidateSubscription)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
}
