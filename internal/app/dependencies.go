package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/dairydesk/internal/health"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/seed"
	"github.com/vladislavdragonenkov/dairydesk/internal/storage/memory"
	"github.com/vladislavdragonenkov/dairydesk/internal/storage/postgres"
)

const seedHTTPTimeout = 10 * time.Second

// runtimeDependencies — хранилища, выбранные по StorageDriver.
type runtimeDependencies struct {
	kv              domain.KeyValueStore
	outboxRepo      *memory.OutboxRepository
	idempotencyRepo *memory.IdempotencyRepository
	storageChecker  healthcheck.Checker
	closeFn         func() error
}

func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil || d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{
		outboxRepo:      memory.NewOutboxRepository(),
		idempotencyRepo: memory.NewIdempotencyRepository(),
	}

	switch driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver)); driver {
	case "", StorageDriverMemory:
		deps.kv = memory.NewKeyValueStore()
		logger.Info("using in-memory storage, state is lost on restart")
	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("postgres storage requires DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		deps.kv = postgres.NewKeyValueStore(store)
		deps.storageChecker = healthcheck.NewChecker("storage", store.Ping)
		deps.closeFn = store.Close
		logger.Info("using postgres storage")
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	return deps, nil
}

// newSeedProvider собирает цепочку: файл, URL, встроенный каталог.
func newSeedProvider(cfg Config, logger *log.Entry) domain.SeedProvider {
	var chain seed.Chain
	if path := strings.TrimSpace(cfg.SeedFile); path != "" {
		chain = append(chain, seed.FileProvider{Path: path})
	}
	if url := strings.TrimSpace(cfg.SeedURL); url != "" {
		chain = append(chain, seed.NewHTTPProvider(
			url,
			&http.Client{Timeout: seedHTTPTimeout},
			seed.DefaultRetryConfig(),
			logger.WithField("component", "seed-http"),
		))
	}
	return append(chain, seed.Embedded{})
}
