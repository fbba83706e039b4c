package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/frog-planner/internal/config"
	"github.com/benvon/frog-planner/internal/database"
	"github.com/benvon/frog-planner/internal/handlers"
	"github.com/benvon/frog-planner/internal/lock"
	"github.com/benvon/frog-planner/internal/logger"
	"github.com/benvon/frog-planner/internal/middleware"
	"github.com/benvon/frog-planner/internal/queue"
	"github.com/benvon/frog-planner/internal/services/planning"
	"github.com/benvon/frog-planner/internal/telemetry"
	"go.uber.org/zap"
)

const (
	rabbitMQMaxRetries   = 10
	deadLetterSweepEvery = time.Hour
	deadLetterRetention  = 24 * time.Hour
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode, zap.String("service", telemetry.ServerServiceName))
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
		zap.Bool("async_scheduling", cfg.RabbitMQURL != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracing := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else if tp, err := telemetry.InitTracer(ctx, telemetry.ServerServiceName, cfg.OTELEndpoint); err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			tracing = true
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	settings, err := cfg.Planner.ToSettings()
	if err != nil {
		zapLogger.Fatal("invalid_planner_settings", zap.Error(err))
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	// Redis holds the scheduling lock shared with workers and the rate limit counters
	locker, err := lock.NewRedisLocker(cfg.RedisURL, cfg.ScheduleLockTTL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := locker.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	// RabbitMQ is optional for the API; without it ?async=true is refused
	var taskQueue *queue.RabbitMQQueue
	if cfg.RabbitMQURL != "" {
		taskQueue, err = queue.DialWithRetry(ctx, cfg.RabbitMQURL, rabbitMQMaxRetries, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
		}
		defer func() {
			if err := taskQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		zapLogger.Info("connected_to_rabbitmq")
	}

	jobRepo := database.NewJobRepository(db)
	jobRepo.SetLogger(zapLogger)

	service, err := planning.New(jobRepo, settings,
		planning.WithLocker(locker),
		planning.WithLogger(zapLogger.Named("planning")),
	)
	if err != nil {
		zapLogger.Fatal("failed_to_create_planning_service", zap.Error(err))
	}

	healthChecker := handlers.NewHealthChecker()
	healthChecker.Register("database", db)
	healthChecker.Register("redis", handlers.CheckFunc(locker.Ping))

	var jobHandler *handlers.JobHandler
	if taskQueue != nil {
		healthChecker.Register("rabbitmq", taskQueue)
		jobHandler = handlers.NewJobHandler(service, taskQueue, zapLogger)
	} else {
		jobHandler = handlers.NewJobHandler(service, nil, zapLogger)
	}

	rateStore, err := middleware.NewRedisStore(locker.Client())
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}
	rateLimit, err := middleware.RateLimit(rateStore, cfg.RateLimit)
	if err != nil {
		zapLogger.Fatal("invalid_rate_limit", zap.String("rate", cfg.RateLimit), zap.Error(err))
	}

	router := newRouter(routerDeps{
		jobs:           jobHandler,
		health:         healthChecker,
		allowedOrigins: middleware.ParseOrigins(cfg.FrontendURL),
		enableHSTS:     cfg.EnableHSTS,
		rateLimit:      rateLimit,
		tracing:        tracing,
		requestTimeout: cfg.RequestTimeout,
		logger:         zapLogger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Longer than the request timeout so the 503 body can be written
		WriteTimeout:   cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	if taskQueue != nil {
		janitor := queue.NewDeadLetterJanitor(taskQueue, deadLetterSweepEvery, deadLetterRetention, zapLogger)
		go func() {
			if err := janitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("dead_letter_janitor_stopped", zap.Error(err))
			}
		}()
		zapLogger.Info("dead_letter_janitor_started",
			zap.Duration("interval", deadLetterSweepEvery),
			zap.Duration("retention", deadLetterRetention),
		)
	}

	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		zapLogger.Error("server_failed", zap.Error(err))
	}

	zapLogger.Info("server_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}
