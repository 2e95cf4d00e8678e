// Package outbox доставляет события desk из transactional outbox в Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
)

const maxRetryDelay = 5 * time.Second

var (
	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dairy_outbox_deliveries_total",
		Help: "Desk event delivery attempts grouped by event type and outcome.",
	}, []string{"event_type", "outcome"})
	pendingEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dairy_outbox_pending_events",
		Help: "Desk events waiting for delivery.",
	})
	oldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dairy_outbox_oldest_pending_age_seconds",
		Help: "Age in seconds of the oldest undelivered desk event.",
	})
)

// Config задаёт параметры доставки. Нулевые значения заменяются значениями по умолчанию,
// кроме RetryBaseDelay: ноль отключает паузы между попытками.
type Config struct {
	Logger         *log.Entry
	DeadLetter     domain.OutboxPublisher
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// DefaultConfig возвращает параметры, с которыми воркер запускается в сервисе.
func DefaultConfig() Config {
	return Config{
		PollInterval:   time.Second,
		BatchSize:      100,
		MaxAttempts:    3,
		RetryBaseDelay: 50 * time.Millisecond,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.RetryBaseDelay < 0 {
		c.RetryBaseDelay = 0
	}
	if c.Logger == nil {
		c.Logger = log.WithField("component", "outbox-worker")
	}
	return c
}

// deadLetter — тело события в DLQ. Формат читает cmd/dlq-reprocess.
type deadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
	FailedAt      time.Time       `json:"failed_at"`
}

// Worker доставляет события desk (сохранение заказа, правки каталога, импорт)
// из outbox в брокер. Событие, не доставленное за MaxAttempts попыток,
// уходит в DLQ и помечается failed; сохранённые данные при этом не меняются.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	cfg       Config
	now       func() time.Time
}

// NewWorker создаёт outbox worker.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, cfg Config) *Worker {
	return &Worker{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg.normalized(),
		now:       time.Now,
	}
}

// Run опрашивает outbox каждые PollInterval до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.cfg.Logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		w.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce забирает одну порцию pending-событий и доставляет их по очереди.
func (w *Worker) ProcessOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	defer w.observeBacklog()

	events, err := w.repo.PullPending(w.cfg.BatchSize)
	if err != nil {
		w.cfg.Logger.WithError(err).Warn("failed to pull pending desk events")
		return
	}

	for _, event := range events {
		if ctx.Err() != nil {
			return
		}
		w.deliver(ctx, event)
	}
}

func (w *Worker) deliver(ctx context.Context, event domain.OutboxMessage) {
	entry := w.cfg.Logger.WithFields(log.Fields{
		"outbox_id":    event.ID,
		"event_type":   event.EventType,
		"aggregate":    event.AggregateType,
		"aggregate_id": event.AggregateID,
	})

	err := w.publishWithRetry(ctx, event)
	if err == nil {
		deliveriesTotal.WithLabelValues(event.EventType, "sent").Inc()
		if markErr := w.repo.MarkSent(event.ID); markErr != nil {
			entry.WithError(markErr).Warn("failed to mark desk event as sent")
		}
		return
	}
	if ctx.Err() != nil {
		// событие остаётся pending и будет доставлено после перезапуска
		return
	}

	entry.WithError(err).Error("desk event delivery failed after retries")
	deliveriesTotal.WithLabelValues(event.EventType, "failed").Inc()

	if dlqErr := w.sendToDeadLetter(event, err); dlqErr != nil {
		entry.WithError(dlqErr).Warn("failed to publish desk event to DLQ")
		deliveriesTotal.WithLabelValues(event.EventType, "dlq_failed").Inc()
	}
	if markErr := w.repo.MarkFailed(event.ID); markErr != nil {
		entry.WithError(markErr).Warn("failed to mark desk event as failed")
	}
}

func (w *Worker) publishWithRetry(ctx context.Context, event domain.OutboxMessage) error {
	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			deliveriesTotal.WithLabelValues(event.EventType, "retry").Inc()
			if err := sleep(ctx, w.backoff(attempt-1)); err != nil {
				return err
			}
		}
		if lastErr = w.publisher.Publish(event); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("publish failed after %d attempts: %w", w.cfg.MaxAttempts, lastErr)
}

// backoff удваивает паузу после каждой неудачи, не превышая maxRetryDelay.
func (w *Worker) backoff(failures int) time.Duration {
	delay := w.cfg.RetryBaseDelay
	if delay <= 0 {
		return 0
	}
	for i := 1; i < failures && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w *Worker) sendToDeadLetter(event domain.OutboxMessage, cause error) error {
	if w.cfg.DeadLetter == nil {
		return nil
	}

	payload := json.RawMessage(event.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	body, err := json.Marshal(deadLetter{
		OutboxID:      event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		PublishError:  cause.Error(),
		FailedAt:      w.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	letter := event
	letter.Payload = body
	if err := w.cfg.DeadLetter.Publish(letter); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}

func (w *Worker) observeBacklog() {
	stats, err := w.repo.Stats()
	if err != nil {
		w.cfg.Logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	pendingEvents.Set(float64(stats.PendingCount))
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		oldestPendingAge.Set(0)
		return
	}
	oldestPendingAge.Set(max(w.now().Sub(stats.OldestPendingAt).Seconds(), 0))
}
