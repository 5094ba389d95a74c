package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dineflow/dineflow/pkg/events"
	"github.com/dineflow/dineflow/pkg/models"
	"github.com/dineflow/dineflow/pkg/persistence"
)

// Engine ties the matcher and walker together: one accepted domain event in,
// zero or more executions advanced as far as they will go without waiting.
type Engine struct {
	store   persistence.Persistence
	matcher *Matcher
	walker  *Walker
	logger  *slog.Logger
}

// NewEngine creates an engine over the given matcher and walker.
func NewEngine(store persistence.Persistence, matcher *Matcher, walker *Walker, logger *slog.Logger) *Engine {
	return &Engine{
		store:   store,
		matcher: matcher,
		walker:  walker,
		logger:  logger.With("module", "engine"),
	}
}

// HandleEvent matches the event against active flows and runs one execution
// per match. Failures are captured per execution in the log; they never
// propagate to the event producer.
func (e *Engine) HandleEvent(ctx context.Context, event events.TriggerEvent) ([]*models.Execution, error) {
	matches, err := e.matcher.Match(ctx, event)
	if err != nil {
		return nil, err
	}

	executions := make([]*models.Execution, 0, len(matches))

	for _, match := range matches {
		execution, err := e.startExecution(ctx, event, match)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to run execution",
				"flow_id", match.Flow.ID, "event", event.Name, "error", err)

			continue
		}

		executions = append(executions, execution)
	}

	return executions, nil
}

func (e *Engine) startExecution(ctx context.Context, event events.TriggerEvent, match Match) (*models.Execution, error) {
	now := time.Now().UTC()

	execution := &models.Execution{
		ID:            "exec-" + uuid.New().String()[:8],
		FlowID:        match.Flow.ID,
		EventName:     event.Name,
		EventPayload:  event.Payload,
		Recipient:     match.Recipient,
		CurrentNodeID: match.Trigger.ID,
		Status:        models.ExecutionStatusRunning,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := e.store.SaveExecution(ctx, execution); err != nil {
		return nil, err
	}

	e.appendTriggerEntry(ctx, execution, match.Trigger)

	e.logger.InfoContext(ctx, "Starting execution",
		"execution_id", execution.ID, "flow_id", match.Flow.ID, "event", event.Name)

	return e.walker.Start(ctx, execution)
}

func (e *Engine) appendTriggerEntry(ctx context.Context, execution *models.Execution, trigger *models.Node) {
	entry := &models.ExecutionLogEntry{
		ID:          uuid.New().String(),
		ExecutionID: execution.ID,
		FlowID:      execution.FlowID,
		NodeID:      trigger.ID,
		NodeKind:    models.NodeKindTrigger,
		Outcome:     models.LogOutcomeSuccess,
		Attempt:     1,
		Timestamp:   time.Now().UTC(),
	}

	if err := e.store.AppendLogEntry(ctx, entry); err != nil {
		e.logger.ErrorContext(ctx, "Failed to record trigger entry",
			"execution_id", execution.ID, "error", err)
	}
}
