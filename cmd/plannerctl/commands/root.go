package commands

import (
	"context"
	"fmt"

	"github.com/benvon/frog-planner/internal/config"
	"github.com/benvon/frog-planner/internal/database"
	"github.com/benvon/frog-planner/internal/lock"
	"github.com/benvon/frog-planner/internal/logger"
	"github.com/benvon/frog-planner/internal/models"
	"github.com/benvon/frog-planner/internal/planner"
	"github.com/benvon/frog-planner/internal/services/planning"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Planner is the part of the planning service the CLI drives
type Planner interface {
	ScheduleAll(ctx context.Context) (*planner.RunResult, error)
	ScheduleOne(ctx context.Context, id uuid.UUID) (*planner.RunResult, error)
	Reset(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ResetAll(ctx context.Context, onlyOpen bool) (int64, error)
	Today(ctx context.Context) (planning.DayPlan, error)
	Week(ctx context.Context, offset int) (planning.WeekPlan, error)
}

var _ Planner = (*planning.Service)(nil)

// Deps are the external resources commands open. Tests swap them for fakes.
type Deps struct {
	LoadConfig func() (*config.Config, error)
	// OpenPlanner returns the planning service and a func releasing its connections
	OpenPlanner func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Planner, func(), error)
	Migrate     func(ctx context.Context, cfg *config.Config) error
}

// DefaultDeps connects to PostgreSQL and, for scheduling, to Redis so CLI runs
// share the lock held by the API and workers
func DefaultDeps() Deps {
	return Deps{
		LoadConfig:  config.Load,
		OpenPlanner: openPlanner,
		Migrate:     migrate,
	}
}

type options struct {
	debug   bool
	jsonOut bool
	noLock  bool
}

// NewRootCmd builds the plannerctl command tree
func NewRootCmd(deps Deps) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "plannerctl",
		Short:         "Operate the frog planner from the command line",
		Long:          "Run migrations and scheduling runs, reset placements and print the day or week plan.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Print JSON instead of text")
	root.PersistentFlags().BoolVar(&opts.noLock, "no-lock", false, "Use an in-process lock instead of Redis")

	root.AddCommand(newMigrateCmd(deps))
	root.AddCommand(newScheduleCmd(deps, opts))
	root.AddCommand(newResetCmd(deps, opts))
	root.AddCommand(newTodayCmd(deps, opts))
	root.AddCommand(newWeekCmd(deps, opts))
	root.AddCommand(newConfigCmd(deps, opts))
	return root
}

// withPlanner loads configuration, opens the planner and runs fn
func withPlanner(cmd *cobra.Command, deps Deps, opts *options, fn func(ctx context.Context, p Planner) error) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	zapLogger, err := logger.NewDevelopmentLogger(opts.debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()
	if opts.noLock {
		cfg.RedisURL = ""
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	p, closeFn, err := deps.OpenPlanner(ctx, cfg, zapLogger)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, p)
}

func openPlanner(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (Planner, func(), error) {
	settings, err := cfg.Planner.ToSettings()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid planner settings: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	closers := []func() error{db.Close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				zapLogger.Warn("failed_to_close_connection", zap.Error(err))
			}
		}
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.RedisURL != "" {
		redisLocker, err := lock.NewRedisLocker(cfg.RedisURL, cfg.ScheduleLockTTL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to connect to redis (use --no-lock to skip): %w", err)
		}
		closers = append(closers, redisLocker.Close)
		locker = redisLocker
	}

	repo := database.NewJobRepository(db)
	repo.SetLogger(zapLogger)
	service, err := planning.New(repo, settings,
		planning.WithLocker(locker),
		planning.WithLogger(zapLogger.Named("planning")),
	)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("failed to create planning service: %w", err)
	}
	return service, closeAll, nil
}

func migrate(ctx context.Context, cfg *config.Config) error {
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()
	return db.Migrate(ctx)
}
