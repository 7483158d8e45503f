package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	identityresolver "pollwarden/contexts/identity-access/identity-resolver"
	voteengine "pollwarden/contexts/polling/vote-engine"
	"pollwarden/contexts/polling/vote-engine/adapters/memory"
	postgresadapter "pollwarden/contexts/polling/vote-engine/adapters/postgres"
	workerapp "pollwarden/contexts/polling/vote-engine/application/workers"
	"pollwarden/contexts/polling/vote-engine/domain/entities"
	"pollwarden/internal/platform/admission"
	"pollwarden/internal/platform/config"
	"pollwarden/internal/platform/db"
	"pollwarden/internal/platform/httpserver"
	"pollwarden/internal/platform/messaging"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type Options struct {
	EnvFile     string
	AutoMigrate bool
}

type APIApp struct {
	server      *httpserver.Server
	postgres    *db.Postgres
	redis       *redis.Client
	limiter     *admission.MemoryLimiter
	sweepPeriod time.Duration
	logger      *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	outboxRelay  workerapp.OutboxRelay
	snapshots    workerapp.ResultSnapshotConsumer
	pollInterval time.Duration
	logger       *slog.Logger
}

// BuildAPI wires the HTTP process. Without POSTGRES_DSN the vote engine runs
// on the in-memory store, and without REDIS_ADDR admission counters stay in
// process.
func BuildAPI(opts Options) (*APIApp, error) {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	trusted, err := httpserver.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	app := &APIApp{sweepPeriod: cfg.AdmissionSweepPeriod, logger: logger}

	var votes voteengine.Module
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		logger.Warn("POSTGRES_DSN not set, using in-memory vote store",
			"event", "bootstrap_memory_store",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		votes = voteengine.NewModule(memoryDependencies(cfg, logger))
	} else {
		pg, err := connectPostgres(cfg, opts, logger)
		if err != nil {
			return nil, err
		}
		app.postgres = pg
		deps, _ := postgresDependencies(cfg, pg, logger)
		votes = voteengine.NewModule(deps)
	}

	var limiter admission.Limiter
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: addr})
		redisLimiter := admission.NewRedisLimiter(app.redis, "")
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisLimiter.Ping(ctx); err != nil {
			// Admission fails closed while redis is down; start anyway.
			logger.Warn("redis ping failed at startup",
				"event", "bootstrap_redis_ping_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		cancel()
		limiter = redisLimiter
	} else {
		app.limiter = admission.NewMemoryLimiter()
		limiter = app.limiter
	}
	controller := admission.NewController(limiter, admissionPolicies(cfg.RateLimits), admission.SystemClock{}, logger)

	app.server = httpserver.New(
		votes,
		identityresolver.NewModule(cfg.IdentitySalt, logger),
		controller,
		logger,
		httpserver.Options{
			Addr:           normalizeAddr(cfg.HTTPPort),
			ServiceName:    cfg.ServiceName,
			TrustedProxies: trusted,
		},
	)
	return app, nil
}

// BuildWorker wires the outbox relay and the result snapshot consumer onto an
// in-process bus. The worker always needs postgres because it drains the
// outbox the API wrote.
func BuildWorker(opts Options) (*WorkerApp, error) {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := connectPostgres(cfg, opts, logger)
	if err != nil {
		return nil, err
	}

	deps, repo := postgresDependencies(cfg, pg, logger)
	module := voteengine.NewModule(deps)
	bus := messaging.NewBus(256, logger)
	return &WorkerApp{
		postgres: pg,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: bus,
			Clock:     deps.Clock,
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		snapshots: workerapp.ResultSnapshotConsumer{
			Subscriber: bus,
			Votes:      deps.Votes,
			Snapshots:  deps.Snapshots,
			Results:    module.Handler.Results,
			Clock:      deps.Clock,
			Logger:     logger,
		},
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}, nil
}

func connectPostgres(cfg config.Config, opts Options, logger *slog.Logger) (*db.Postgres, error) {
	pg, err := db.Connect(cfg.PostgresDSN, db.DefaultPoolOptions())
	if err != nil {
		return nil, err
	}
	if opts.AutoMigrate {
		if err := postgresadapter.AutoMigrate(pg.DB); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		logger.Info("vote engine schema migrated",
			"event", "bootstrap_auto_migrated",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return pg, nil
}

func postgresDependencies(cfg config.Config, pg *db.Postgres, logger *slog.Logger) (voteengine.Dependencies, *postgresadapter.Repository) {
	repo := postgresadapter.NewRepository(pg.DB, logger, postgresadapter.WithRetryAttempts(cfg.StorageRetryAttempts))
	deps := voteengine.Dependencies{
		Votes:                  repo,
		Responses:              repo,
		Flags:                  repo,
		Actions:                repo,
		Snapshots:              repo,
		Clock:                  postgresadapter.SystemClock{},
		IDGen:                  postgresadapter.UUIDGenerator{},
		ScorePolicy:            entities.ScorePolicy{Min: cfg.ScoreMin, Max: cfg.ScoreMax},
		FreezeOptionsOnPublish: cfg.FreezeOptionsOnPublish,
		MaxBatchSize:           cfg.BulkActionMaxBatch,
		BulkConcurrency:        cfg.BulkActionConcurrency,
		SlugSalt:               cfg.SlugSalt,
		Logger:                 logger,
	}
	return deps, repo
}

func memoryDependencies(cfg config.Config, logger *slog.Logger) voteengine.Dependencies {
	store := memory.NewStore(nil)
	return voteengine.Dependencies{
		Votes:                  store,
		Responses:              store,
		Flags:                  store,
		Actions:                store,
		Snapshots:              store,
		Clock:                  store,
		IDGen:                  store,
		ScorePolicy:            entities.ScorePolicy{Min: cfg.ScoreMin, Max: cfg.ScoreMax},
		FreezeOptionsOnPublish: cfg.FreezeOptionsOnPublish,
		MaxBatchSize:           cfg.BulkActionMaxBatch,
		BulkConcurrency:        cfg.BulkActionConcurrency,
		SlugSalt:               cfg.SlugSalt,
		Logger:                 logger,
	}
}

func admissionPolicies(limits map[string]config.RateLimit) map[admission.EndpointClass]admission.Policy {
	defaults := admission.DefaultPolicies()
	policies := make(map[admission.EndpointClass]admission.Policy, len(limits))
	for class, limit := range limits {
		key := admission.EndpointClass(class)
		policy, known := defaults[key]
		if !known {
			continue
		}
		if limit.Limit > 0 {
			policy.Limit = limit.Limit
		}
		if limit.Window > 0 {
			policy.Window = limit.Window
		}
		policies[key] = policy
	}
	return policies
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(a.server.Start)
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	if a.limiter != nil {
		group.Go(func() error {
			a.sweepAdmission(groupCtx)
			return nil
		})
	}
	return group.Wait()
}

func (a *APIApp) sweepAdmission(ctx context.Context) {
	period := a.sweepPeriod
	if period <= 0 {
		period = time.Minute
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := a.limiter.Sweep(now.UTC()); removed > 0 {
				a.logger.Debug("admission counters swept",
					"event", "bootstrap_admission_swept",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"removed", removed,
				)
			}
		}
	}
}

func (a *APIApp) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.postgres != nil {
		errs = append(errs, a.postgres.Close())
	}
	return errors.Join(errs...)
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.snapshots.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if _, err := w.outboxRelay.RunOnce(ctx); err != nil && ctx.Err() == nil {
			// Pending rows are retried on the next tick.
			w.logger.Warn("outbox relay cycle failed",
				"event", "bootstrap_outbox_cycle_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
