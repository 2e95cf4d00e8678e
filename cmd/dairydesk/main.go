package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dairydesk/internal/app"
	"github.com/vladislavdragonenkov/dairydesk/internal/version"
)

const (
	envHTTPAddr                    = "DAIRY_HTTP_ADDR"
	envGRPCAddr                    = "DAIRY_GRPC_ADDR"
	envMetricsAddr                 = "DAIRY_METRICS_ADDR"
	envStorageDriver               = "DAIRY_STORAGE_DRIVER"
	envPostgresDSN                 = "DAIRY_POSTGRES_DSN"
	envPostgresAutoMigrate         = "DAIRY_POSTGRES_AUTO_MIGRATE"
	envTimezone                    = "DAIRY_TIMEZONE"
	envSeedFile                    = "DAIRY_SEED_FILE"
	envSeedURL                     = "DAIRY_SEED_URL"
	envKafkaBrokers                = "KAFKA_BROKERS"
	envKafkaTopic                  = "DAIRY_KAFKA_TOPIC"
	envOutboxPollInterval          = "DAIRY_OUTBOX_POLL_INTERVAL"
	envIdempotencyTTL              = "DAIRY_IDEMPOTENCY_TTL"
	envIdempotencyCleanupInterval  = "DAIRY_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "DAIRY_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
	envLogLevel                    = "DAIRY_LOG_LEVEL"
	envDotEnvFile                  = "DAIRY_ENV_FILE"
)

// setupLogger настраивает формат и уровень логирования.
func setupLogger(level string) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	if strings.TrimSpace(level) == "" {
		return nil
	}
	parsed, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return err
	}
	log.SetLevel(parsed)
	return nil
}

// loadDotEnv подхватывает .env (или DAIRY_ENV_FILE), не перетирая заданные переменные.
func loadDotEnv() error {
	path := strings.TrimSpace(os.Getenv(envDotEnvFile))
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// readConfigFromEnv строит конфигурацию из переменных окружения.
// Некорректные значения не применяются и возвращаются как предупреждения.
func readConfigFromEnv(lookup func(string) (string, bool)) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	str := func(key string, target *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*target = strings.TrimSpace(v)
		}
	}
	duration := func(key string, target *time.Duration) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil || parsed <= 0 {
			warnings = append(warnings, fmt.Sprintf("%s: invalid duration %q", key, v))
			return
		}
		*target = parsed
	}
	positiveInt := func(key string, target *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || parsed <= 0 {
			warnings = append(warnings, fmt.Sprintf("%s: invalid positive integer %q", key, v))
			return
		}
		*target = parsed
	}
	boolean := func(key string, target *bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			*target = true
		case "0", "false", "no", "off":
			*target = false
		default:
			warnings = append(warnings, fmt.Sprintf("%s: invalid boolean %q", key, v))
		}
	}

	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	str(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	str(envTimezone, &cfg.Timezone)
	str(envSeedFile, &cfg.SeedFile)
	str(envSeedURL, &cfg.SeedURL)
	str(envKafkaBrokers, &cfg.KafkaBrokers)
	str(envKafkaTopic, &cfg.KafkaTopic)
	duration(envOutboxPollInterval, &cfg.OutboxPollInterval)
	duration(envIdempotencyTTL, &cfg.IdempotencyTTL)
	duration(envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval)
	positiveInt(envIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize)

	return cfg, warnings
}

func main() {
	dotEnvErr := loadDotEnv()
	if err := setupLogger(os.Getenv(envLogLevel)); err != nil {
		log.WithError(err).Warn("invalid log level, using info")
	}
	if dotEnvErr != nil {
		log.WithError(dotEnvErr).Warn("failed to load env file")
	}

	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"version":        version.String(),
		"http_addr":      cfg.HTTPAddr,
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"timezone":       cfg.Timezone,
	}).Info("запускаем dairydesk")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("dairydesk остановлен")
}
