// Package eventbus decouples event producers from the worker: the API and
// scheduler publish accepted events, the worker consumes them.
package eventbus

import (
	"context"

	"github.com/dineflow/dineflow/pkg/events"
)

// EventHandler processes one decoded bus event.
type EventHandler func(ctx context.Context, event any) error

// EventBus publishes and consumes typed bus events.
type EventBus interface {
	Publish(ctx context.Context, key string, event events.BusEvent) error
	Handle(eventType events.EventType, handler EventHandler)
	Subscribe(ctx context.Context) error
	GenerateID() string
	Close() error
}
