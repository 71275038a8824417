package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	proposalengine "safetynet/contexts/governance/proposal-engine"
	"safetynet/contexts/governance/proposal-engine/adapters/audit"
	"safetynet/contexts/governance/proposal-engine/adapters/hooks"
	postgresadapter "safetynet/contexts/governance/proposal-engine/adapters/postgres"
	workerapp "safetynet/contexts/governance/proposal-engine/application/workers"
	"safetynet/internal/platform/config"
	"safetynet/internal/platform/db"
	"safetynet/internal/platform/httpserver"
	"safetynet/internal/platform/messaging"
)

// Package bootstrap is the composition root. Keep construction/wiring here
// so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres      *db.Postgres
	sweeper       workerapp.DeadlineSweeper
	relay         workerapp.AuditRelay
	sweepInterval time.Duration
	relayInterval time.Duration
	logger        *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := postgresadapter.Migrate(pg.DB); err != nil {
		_ = pg.Close()
		return nil, err
	}

	module := buildModule(pg, logger)
	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	module := buildModule(pg, logger)
	return &WorkerApp{
		postgres: pg,
		sweeper: workerapp.DeadlineSweeper{
			Proposals: repo,
			Finalizer: module.Finalizer,
			Clock:     postgresadapter.SystemClock{},
			Logger:    logger,
		},
		relay: workerapp.AuditRelay{
			Outbox:    repo,
			Publisher: kafka,
			Clock:     postgresadapter.SystemClock{},
			Topic:     cfg.AuditTopic,
			BatchSize: cfg.AuditRelayBatchSize,
			Logger:    logger,
		},
		sweepInterval: cfg.SweepInterval,
		relayInterval: cfg.RelayPollInterval,
		logger:        logger,
	}, nil
}

func buildModule(pg *db.Postgres, logger *slog.Logger) proposalengine.Module {
	repo := postgresadapter.NewRepository(pg.DB, logger)
	return proposalengine.NewModule(proposalengine.Dependencies{
		Proposals: repo,
		Votes:     repo,
		Members:   repo,
		Audit: audit.OutboxSink{
			Outbox: repo,
			Clock:  postgresadapter.SystemClock{},
			IDGen:  postgresadapter.UUIDGenerator{},
		},
		Hook:   hooks.LoggingHook{Logger: logger},
		Clock:  postgresadapter.SystemClock{},
		IDGen:  postgresadapter.UUIDGenerator{},
		Logger: logger,
	})
}

func (a *APIApp) Run(_ context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (a *WorkerApp) Run(ctx context.Context) error {
	a.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"sweep_interval", a.sweepInterval.String(),
		"relay_interval", a.relayInterval.String(),
	)

	sweep := time.NewTicker(a.sweepInterval)
	defer sweep.Stop()
	relay := time.NewTicker(a.relayInterval)
	defer relay.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sweep.C:
			// Worker cycles log their own failures; the loop keeps running.
			_ = a.sweeper.RunOnce(ctx)
		case <-relay.C:
			_ = a.relay.RunOnce(ctx)
		}
	}
}

func (a *WorkerApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return ":8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}
