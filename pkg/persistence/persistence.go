// Package persistence provides the data storage abstraction for flow
// definitions, executions, the execution log and order schedules.
package persistence

import (
	"context"
	"time"

	"github.com/dineflow/dineflow/pkg/models"
)

// FlowRepository stores authored flow definitions. The engine only reads;
// writes come from the authoring service.
type FlowRepository interface {
	Flows(ctx context.Context) ([]*models.FlowDefinition, error)
	ActiveFlows(ctx context.Context) ([]*models.FlowDefinition, error)
	FlowByID(ctx context.Context, id string) (*models.FlowDefinition, error)
	SaveFlow(ctx context.Context, flow *models.FlowDefinition) error
	DeleteFlow(ctx context.Context, id string) error
}

// ExecutionRepository stores execution state. ClaimResumption is the
// scheduler's at-most-once safeguard: it atomically stamps the resumed marker
// on a still-suspended execution and reports whether this caller won the
// claim. Two overlapping scheduler runs can both find the same due execution;
// only one claim succeeds.
type ExecutionRepository interface {
	SaveExecution(ctx context.Context, execution *models.Execution) error
	ExecutionByID(ctx context.Context, id string) (*models.Execution, error)
	ExecutionsByFlow(ctx context.Context, flowID string) ([]*models.Execution, error)
	DueExecutions(ctx context.Context, now time.Time, tolerance time.Duration) ([]*models.Execution, error)
	ClaimResumption(ctx context.Context, executionID string, now time.Time) (bool, error)
}

// ExecutionLogRepository is append-only from the engine's perspective; the
// query side serves the admin surface.
type ExecutionLogRepository interface {
	AppendLogEntry(ctx context.Context, entry *models.ExecutionLogEntry) error
	LogEntries(ctx context.Context, executionID string) ([]*models.ExecutionLogEntry, error)
	FlowStats(ctx context.Context, flowID string) (*models.FlowStats, error)
}

// OrderScheduleRepository stores upcoming scheduled orders for the
// scheduler's originate duty. MarkReminded has the same atomic-claim contract
// as ClaimResumption.
type OrderScheduleRepository interface {
	SaveOrderSchedule(ctx context.Context, schedule *models.OrderSchedule) error
	DueOrderSchedules(ctx context.Context, now time.Time) ([]*models.OrderSchedule, error)
	MarkReminded(ctx context.Context, scheduleID string) (bool, error)
}

// Persistence aggregates all repositories behind one handle.
type Persistence interface {
	FlowRepository
	ExecutionRepository
	ExecutionLogRepository
	OrderScheduleRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
