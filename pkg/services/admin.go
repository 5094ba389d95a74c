package services

import (
	"context"
	"time"

	"github.com/dineflow/dineflow/pkg/models"
	"github.com/dineflow/dineflow/pkg/persistence"
)

// Admin serves the marketing dashboard's read side plus out-of-band
// execution cancellation.
type Admin struct {
	store persistence.Persistence
}

// NewAdmin creates the admin query service.
func NewAdmin(store persistence.Persistence) *Admin {
	return &Admin{store: store}
}

// FlowExecutions lists every execution of a flow.
func (s *Admin) FlowExecutions(ctx context.Context, flowID string) ([]*models.Execution, error) {
	return s.store.ExecutionsByFlow(ctx, flowID)
}

// Execution returns one execution.
func (s *Admin) Execution(ctx context.Context, id string) (*models.Execution, error) {
	return s.store.ExecutionByID(ctx, id)
}

// ExecutionLog returns an execution's audit trail in timestamp order.
func (s *Admin) ExecutionLog(ctx context.Context, executionID string) ([]*models.ExecutionLogEntry, error) {
	return s.store.LogEntries(ctx, executionID)
}

// FlowStats returns the aggregate counters derived from the log.
func (s *Admin) FlowStats(ctx context.Context, flowID string) (*models.FlowStats, error) {
	return s.store.FlowStats(ctx, flowID)
}

// CancelExecution forces a non-terminal execution to Failed. The scheduler's
// claim check guarantees a cancelled execution is never resumed afterwards.
func (s *Admin) CancelExecution(ctx context.Context, id string) (*models.Execution, error) {
	execution, err := s.store.ExecutionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if execution.Status == models.ExecutionStatusCompleted || execution.Status == models.ExecutionStatusFailed {
		return nil, &ServiceError{Op: "CancelExecution", Code: "terminal", Message: "execution already finished", Err: ErrExecutionNotTerminal}
	}

	execution.Fail(execution.CurrentNodeID, "cancelled by administrator")
	execution.UpdatedAt = time.Now().UTC()

	if err := s.store.SaveExecution(ctx, execution); err != nil {
		return nil, err
	}

	return execution, nil
}

// RegisterOrderSchedule records an upcoming scheduled order so the scheduler
// can originate a reminder event ahead of the slot.
func (s *Admin) RegisterOrderSchedule(ctx context.Context, schedule *models.OrderSchedule) error {
	return s.store.SaveOrderSchedule(ctx, schedule)
}
