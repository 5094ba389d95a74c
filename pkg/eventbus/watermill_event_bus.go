package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/dineflow/dineflow/pkg/events"
)

// WatermillEventBus adapts a watermill publisher/subscriber pair to the
// EventBus interface. The concrete transport (in-memory channel or Kafka)
// comes from the channels subpackages.
type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

// NewWatermillEventBus creates a bus over the given transport.
func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

// GenerateID returns a new globally unique message id.
func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

// Publish serializes the event and publishes it on the shared topic with the
// event type in the message metadata for routing.
func (eb *WatermillEventBus) Publish(_ context.Context, key string, event events.BusEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

// Handle registers a handler for an event type. Handlers must be registered
// before Subscribe.
func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) {
	eb.subscriptions[eventType] = handler
}

// Subscribe starts consuming the topic, dispatching each message to the
// handler registered for its event type. Unknown types are acked and
// dropped; handler errors nack for redelivery.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			handler, exists := eb.subscriptions[eventType]
			if !exists {
				msg.Ack()

				continue
			}

			event, ok := decodeEvent(eventType, msg.Payload)
			if !ok {
				msg.Nack()

				continue
			}

			if err := handler(ctx, event); err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func decodeEvent(eventType events.EventType, payload []byte) (any, bool) {
	var event any

	switch eventType {
	case events.EventReceivedType:
		event = &events.EventReceived{}
	case events.ExecutionStartedType:
		event = &events.ExecutionStarted{}
	case events.ExecutionCompletedType:
		event = &events.ExecutionCompleted{}
	case events.ExecutionFailedType:
		event = &events.ExecutionFailed{}
	case events.ExecutionSuspendedType:
		event = &events.ExecutionSuspended{}
	default:
		return nil, false
	}

	if err := json.Unmarshal(payload, event); err != nil {
		return nil, false
	}

	return event, true
}

// Close shuts down the underlying transport.
func (eb *WatermillEventBus) Close() error {
	if err := eb.publisher.Close(); err != nil {
		return err
	}

	return eb.subscriber.Close()
}
