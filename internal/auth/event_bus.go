package auth

import (
	"context"
	"encoding/json"

	"leadgen-sync/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventBus carries SessionEvents over a watermill topic. The GoChannel must be
// created with BlockPublishUntilSubscriberAck so that subscribers observe
// events in publish order and Publish returns once they are handled.
//
// Handlers must not publish on the same bus.
type EventBus struct {
	pubSub *gochannel.GoChannel
	topic  string
	logger logger.ILogger
}

func NewEventBus(pubSub *gochannel.GoChannel, topic string, log logger.ILogger) *EventBus {
	return &EventBus{
		pubSub: pubSub,
		topic:  topic,
		logger: log,
	}
}

func (b *EventBus) Publish(ev SessionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.pubSub.Publish(b.topic, message.NewMessage(watermill.NewUUID(), payload))
}

// Subscribe delivers every later event to handler until the returned
// function is called.
func (b *EventBus) Subscribe(handler func(SessionEvent)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())

	messages, err := b.pubSub.Subscribe(ctx, b.topic)
	if err != nil {
		cancel()
		return nil, err
	}

	go func() {
		for msg := range messages {
			var ev SessionEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.logger.Error("AuthEventBus", "Dropping malformed session event", map[string]interface{}{
					"message_id": msg.UUID,
					"error":      err.Error(),
				})
				msg.Ack()
				continue
			}
			handler(ev)
			msg.Ack()
		}
	}()

	return cancel, nil
}
