package domain

import (
	"context"
	"time"
)

// SeedProvider поставляет каталог по умолчанию, когда каталог пуст.
type SeedProvider interface {
	// Fetch возвращает товары каталога по умолчанию.
	Fetch(ctx context.Context) ([]Product, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// Типы агрегатов и событий, которые desk кладёт в outbox.
const (
	AggregateOrder   = "order"
	AggregateCatalog = "catalog"
	AggregateBackup  = "backup"

	EventOrderSaved      = "OrderSaved"
	EventHistoryDeleted  = "HistoryDeleted"
	EventProductUpserted = "ProductUpserted"
	EventProductRemoved  = "ProductRemoved"
	EventCatalogSeeded   = "CatalogSeeded"
	EventBackupImported  = "BackupImported"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
