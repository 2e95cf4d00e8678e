package session

import (
	"encoding/json"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
)

type orderSavedEvent struct {
	Date       string             `json:"date"`
	Total      float64            `json:"total"`
	CrateCount int                `json:"crate_count"`
	Items      []domain.OrderLine `json:"items"`
}

type historyDeletedEvent struct {
	Dates   []string `json:"dates"`
	Removed int      `json:"removed"`
}

type productEvent struct {
	Product domain.Product `json:"product"`
}

type productRemovedEvent struct {
	ID string `json:"id"`
}

type catalogSeededEvent struct {
	Products int `json:"products"`
}

type backupImportedEvent struct {
	Products int `json:"products"`
	Orders   int `json:"orders"`
}

// publish кладёт событие в outbox. Ошибка только логируется: мутация уже сохранена.
func (d *Desk) publish(aggregateType, aggregateID, eventType string, payload any) {
	if d.outbox == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.WithError(err).WithField("event_type", eventType).Warn("failed to marshal outbox payload")
		return
	}

	if _, err := d.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
	}); err != nil {
		d.logger.WithError(err).WithField("event_type", eventType).Warn("failed to enqueue outbox event")
		return
	}
	d.metrics.RecordOutboxEvent()
}
