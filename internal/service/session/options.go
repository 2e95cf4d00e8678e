package session

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
	"github.com/vladislavdragonenkov/dairydesk/internal/metrics"
)

// Options задаёт зависимости Desk.
type Options struct {
	Logger   *log.Entry
	Seed     domain.SeedProvider
	Outbox   domain.OutboxRepository
	Metrics  *metrics.DeskMetrics
	Location *time.Location
	Clock    func() time.Time
}

// Option настраивает Desk.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithSeedProvider задаёт поставщика каталога по умолчанию для пустого хранилища.
func WithSeedProvider(provider domain.SeedProvider) Option {
	return func(opts *Options) {
		opts.Seed = provider
	}
}

// WithOutbox включает публикацию доменных событий через transactional outbox.
func WithOutbox(repo domain.OutboxRepository) Option {
	return func(opts *Options) {
		opts.Outbox = repo
	}
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.DeskMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithLocation задаёт зону для календарных дней (фильтры, аналитика, отчёты).
func WithLocation(loc *time.Location) Option {
	return func(opts *Options) {
		opts.Location = loc
	}
}

// WithClock подменяет источник времени (в тестах).
func WithClock(clock func() time.Time) Option {
	return func(opts *Options) {
		opts.Clock = clock
	}
}
