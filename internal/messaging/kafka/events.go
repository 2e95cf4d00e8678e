package kafka

import (
	"encoding/json"
	"time"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
)

// Topics для Kafka
const (
	TopicDeskEvents      = "dairy.desk.events"
	TopicDeadLetterQueue = "dairy.desk.dlq"
)

// Заголовки сообщений
const (
	HeaderEventType     = "x-event-type"
	HeaderOriginalTopic = "x-original-topic"
	HeaderReplayedFrom  = "x-replayed-from"
	HeaderFailedAt      = "x-failed-at"
)

// Envelope — формат сообщения о событии desk в Kafka.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id,omitempty"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope оборачивает outbox-сообщение.
func NewEnvelope(event domain.OutboxMessage, publishedAt time.Time) Envelope {
	payload := json.RawMessage(event.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return Envelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		PublishedAt:   publishedAt.UTC(),
	}
}

// PartitionKey выбирает ключ партиционирования: события одного заказа или товара
// попадают в одну партицию. Для событий без агрегата используется тип агрегата.
func (e Envelope) PartitionKey() string {
	if e.AggregateID != "" {
		return e.AggregateType + ":" + e.AggregateID
	}
	if e.AggregateType != "" {
		return e.AggregateType
	}
	return e.ID
}
