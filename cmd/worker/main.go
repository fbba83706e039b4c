package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/frog-planner/internal/config"
	"github.com/benvon/frog-planner/internal/database"
	"github.com/benvon/frog-planner/internal/lock"
	"github.com/benvon/frog-planner/internal/logger"
	"github.com/benvon/frog-planner/internal/queue"
	"github.com/benvon/frog-planner/internal/services/planning"
	"github.com/benvon/frog-planner/internal/telemetry"
	"github.com/benvon/frog-planner/internal/workers"
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
	if err := cfg.RequireRabbitMQ(); err != nil {
		log.Fatalf("Worker cannot start: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode, zap.String("service", telemetry.WorkerServiceName))
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
		zap.String("rollback_schedule", cfg.RollbackSchedule),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTELEnabled && cfg.OTELEndpoint != "" {
		tp, err := telemetry.InitTracer(ctx, telemetry.WorkerServiceName, cfg.OTELEndpoint)
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
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
	zapLogger.Info("connected_to_database")

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

	taskQueue, err := queue.DialWithRetry(ctx, cfg.RabbitMQURL, rabbitMQMaxRetries, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
	}
	defer func() {
		if err := taskQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq")

	jobRepo := database.NewJobRepository(db)
	jobRepo.SetLogger(zapLogger)

	service, err := planning.New(jobRepo, settings,
		planning.WithLocker(locker),
		planning.WithLogger(zapLogger.Named("planning")),
	)
	if err != nil {
		zapLogger.Fatal("failed_to_create_planning_service", zap.Error(err))
	}

	processor := workers.NewProcessor(service, taskQueue, zapLogger)

	sweeper, err := workers.NewSweeper(service, cfg.RollbackSchedule, settings.Location, zapLogger)
	if err != nil {
		zapLogger.Fatal("invalid_rollback_schedule", zap.String("schedule", cfg.RollbackSchedule), zap.Error(err))
	}
	if err := sweeper.Start(ctx); err != nil {
		zapLogger.Fatal("failed_to_start_rollback_sweeper", zap.Error(err))
	}

	janitor := queue.NewDeadLetterJanitor(taskQueue, deadLetterSweepEvery, deadLetterRetention, zapLogger)
	go func() {
		if err := janitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("dead_letter_janitor_stopped", zap.Error(err))
		}
	}()

	msgChan, errChan, err := taskQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}
	zapLogger.Info("worker_started")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range msgChan {
			task := msg.GetTask()
			if err := processor.ProcessTask(ctx, msg); err != nil {
				zapLogger.Error("failed_to_process_task",
					zap.String("task_id", task.ID.String()),
					zap.String("task_type", string(task.Type)),
					zap.Error(err),
				)
			}
		}
	}()

	select {
	case <-ctx.Done():
		zapLogger.Info("shutdown_signal_received")
	case err, ok := <-errChan:
		// The broker closed the delivery channel; exit so the supervisor restarts us
		if ok {
			zapLogger.Error("queue_error", zap.Error(err))
		}
		stop()
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sweeper.Stop(stopCtx)

	select {
	case <-done:
	case <-stopCtx.Done():
		zapLogger.Warn("worker_stop_timed_out")
	}

	zapLogger.Info("worker_stopped")
}
