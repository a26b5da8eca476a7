package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"datachat-be/internal/pkg/logger"
	"datachat-be/pkg/events"
	natsbus "datachat-be/pkg/nats"
)

// TopicMemoryWrite is the in-process topic feeding the memory writer.
const TopicMemoryWrite = "memory_write"

// EventPublisher fans events out to the in-process bus (which drives the
// memory writer) and, when configured, to NATS for external consumers.
type EventPublisher struct {
	pubSub *gochannel.GoChannel
	nats   *natsbus.Publisher // optional
	logger logger.ILogger
}

func NewEventPublisher(pubSub *gochannel.GoChannel, natsPublisher *natsbus.Publisher, log logger.ILogger) *EventPublisher {
	return &EventPublisher{
		pubSub: pubSub,
		nats:   natsPublisher,
		logger: log,
	}
}

func (p *EventPublisher) Publish(ctx context.Context, event events.Event) error {
	if event.EventType() == events.TypeMemoryWrite {
		payload, err := json.Marshal(event.Payload())
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		msg := message.NewMessage(watermill.NewUUID(), payload)
		if err := p.pubSub.Publish(TopicMemoryWrite, msg); err != nil {
			return fmt.Errorf("publish to in-process bus: %w", err)
		}
	}

	if p.nats != nil {
		if err := p.nats.Publish(ctx, event); err != nil {
			// NATS is best-effort fan-out; the in-process path already ran
			p.logger.Warn("events", "nats publish failed", map[string]interface{}{
				"type":  event.EventType(),
				"error": err.Error(),
			})
		}
	}

	return nil
}
