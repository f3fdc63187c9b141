package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// EventPublisher is any message broker client that can publish to a named queue.
type EventPublisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Event is the envelope of every published domain event.
type Event struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// PublishEvent marshals and publishes payload as an Event on queue.
// A nil publisher is a no-op. Failures are logged and never returned: events are best effort.
func PublishEvent(ctx context.Context, pub EventPublisher, logger Logger, queue string, payload interface{}) {
	if pub == nil {
		return
	}
	body, err := json.Marshal(Event{Type: queue, OccurredAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		logger.Error(fmt.Sprintf("marshalling %s event: %v", queue, err), err)
		return
	}
	if err = pub.Publish(ctx, queue, body); err != nil {
		logger.Warn(fmt.Sprintf("publishing %s event: %v", queue, err), err)
	}
}
