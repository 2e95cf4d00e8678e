package kafka

import (
	"errors"
	"time"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
)

var errPublisherNotInitialized = errors.New("kafka outbox publisher is not initialized")

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
type OutboxTopicPublisher struct {
	producer    *Producer
	topic       string
	sourceTopic string
	now         func() time.Time
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicDeskEvents
	}
	return &OutboxTopicPublisher{producer: producer, topic: topic, now: time.Now}
}

// NewDLQPublisher создаёт паблишер для сообщений, исчерпавших попытки доставки.
// Сообщения получают заголовки с исходным topic и временем отказа.
func NewDLQPublisher(producer *Producer, sourceTopic string) *OutboxTopicPublisher {
	if sourceTopic == "" {
		sourceTopic = TopicDeskEvents
	}
	return &OutboxTopicPublisher{
		producer:    producer,
		topic:       TopicDeadLetterQueue,
		sourceTopic: sourceTopic,
		now:         time.Now,
	}
}

// Topic возвращает topic назначения.
func (p *OutboxTopicPublisher) Topic() string {
	return p.topic
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotInitialized
	}

	now := p.now()
	envelope := NewEnvelope(event, now)
	headers := map[string]string{HeaderEventType: event.EventType}
	if p.sourceTopic != "" {
		headers[HeaderOriginalTopic] = p.sourceTopic
		headers[HeaderFailedAt] = now.UTC().Format(time.RFC3339Nano)
	}

	return p.producer.PublishEvent(p.topic, envelope.PartitionKey(), envelope, headers)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
