package events

import "time"

// EventType identifies a bus event for routing and decoding.
type EventType string

// Bus topic.
const Topic = "dineflow.events"

const (
	EventMetadataKey     = "key"
	EventTypeMetadataKey = "event_type"
)

const (
	// EventReceivedType is published by the API (or the scheduler's originate
	// duty) when a domain event is accepted for processing.
	EventReceivedType EventType = "event.received"

	// Execution lifecycle notifications emitted by the worker.
	ExecutionStartedType   EventType = "execution.started"
	ExecutionCompletedType EventType = "execution.completed"
	ExecutionFailedType    EventType = "execution.failed"
	ExecutionSuspendedType EventType = "execution.suspended"
)

// BusEvent is implemented by every event published on the bus.
type BusEvent interface {
	GetType() EventType
}

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EventReceived carries an accepted domain event to the worker. The producer
// returns as soon as this is published; all processing is asynchronous.
type EventReceived struct {
	BaseEvent

	Event TriggerEvent `json:"event"`
}

func (e EventReceived) GetType() EventType {
	return EventReceivedType
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	FlowID      string `json:"flow_id"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedType
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	FlowID      string        `json:"flow_id"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedType
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	FlowID      string `json:"flow_id"`
	Error       string `json:"error"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedType
}

type ExecutionSuspended struct {
	BaseEvent

	ExecutionID string    `json:"execution_id"`
	FlowID      string    `json:"flow_id"`
	ResumeAt    time.Time `json:"resume_at"`
}

func (e ExecutionSuspended) GetType() EventType {
	return ExecutionSuspendedType
}
