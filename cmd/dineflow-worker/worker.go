package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dineflow/dineflow/pkg/eventbus"
	"github.com/dineflow/dineflow/pkg/events"
	"github.com/dineflow/dineflow/pkg/flow"
	"github.com/dineflow/dineflow/pkg/models"
	"github.com/dineflow/dineflow/pkg/otelhelper"
	"github.com/dineflow/dineflow/pkg/persistence"
)

// WorkerManager consumes accepted domain events from the bus and runs the
// flow engine for each. Execution lifecycle notifications go back on the bus.
type WorkerManager struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	engine      *flow.Engine
	tracer      trace.Tracer
}

func NewWorkerManager(
	id string,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	engine *flow.Engine,
	tracer trace.Tracer,
	logger *slog.Logger,
) *WorkerManager {
	return &WorkerManager{
		id:          id,
		logger:      logger.With("module", "dineflow-worker", "worker_id", id),
		persistence: persistence,
		eventBus:    eventBus,
		engine:      engine,
		tracer:      tracer,
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager", "worker_id", w.id)

	w.eventBus.Handle(events.EventReceivedType, w.handleEventReceived)

	err := w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *WorkerManager) handleEventReceived(ctx context.Context, event any) error {
	received, ok := event.(*events.EventReceived)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for EventReceived")

		return nil
	}

	logger := w.logger.With(
		"event_name", received.Event.Name,
		"event_id", received.ID,
	)
	logger.InfoContext(ctx, "Processing domain event")

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "worker.handle_event",
		attribute.String(otelhelper.EventNameKey, received.Event.Name),
	)
	defer span.End()

	started := time.Now()

	executions, err := w.engine.HandleEvent(ctx, received.Event)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Failed to handle domain event", "error", err)

		return err
	}

	for _, execution := range executions {
		w.publishLifecycle(ctx, execution, time.Since(started))
	}

	logger.InfoContext(ctx, "Domain event processed", "executions", len(executions))

	return nil
}

// publishLifecycle reports the post-walk state of one execution. Publish
// failures are logged and dropped; the notifications are advisory and the
// execution state is already persisted.
func (w *WorkerManager) publishLifecycle(ctx context.Context, execution *models.Execution, elapsed time.Duration) {
	base := events.BaseEvent{
		ID:        w.eventBus.GenerateID(),
		Timestamp: time.Now().UTC(),
	}

	var event events.BusEvent

	switch execution.Status {
	case models.ExecutionStatusCompleted:
		base.Type = events.ExecutionCompletedType
		event = events.ExecutionCompleted{
			BaseEvent:   base,
			ExecutionID: execution.ID,
			FlowID:      execution.FlowID,
			Duration:    elapsed,
		}
	case models.ExecutionStatusFailed:
		base.Type = events.ExecutionFailedType
		event = events.ExecutionFailed{
			BaseEvent:   base,
			ExecutionID: execution.ID,
			FlowID:      execution.FlowID,
			Error:       execution.FailureReason,
		}
	case models.ExecutionStatusSuspended:
		base.Type = events.ExecutionSuspendedType

		var resumeAt time.Time
		if execution.ResumeAt != nil {
			resumeAt = *execution.ResumeAt
		}

		event = events.ExecutionSuspended{
			BaseEvent:   base,
			ExecutionID: execution.ID,
			FlowID:      execution.FlowID,
			ResumeAt:    resumeAt,
		}
	default:
		return
	}

	if err := w.eventBus.Publish(ctx, execution.FlowID, event); err != nil {
		w.logger.ErrorContext(ctx, "Failed to publish lifecycle event",
			"error", err,
			"execution_id", execution.ID,
		)
	}
}
