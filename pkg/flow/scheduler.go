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

// DefaultCadence is the expected gap between scheduler invocations. The due
// window extends half a cadence past now so an execution falling just after
// this run's boundary is not missed by the next.
const DefaultCadence = 5 * time.Minute

// Scheduler is the engine's clock: an externally invoked, idempotent pass
// that resumes suspended executions whose time has come and originates
// trigger events for due order-schedule reminders. It holds no timers of its
// own; crash recovery is simply the next invocation.
type Scheduler struct {
	store   persistence.Persistence
	walker  *Walker
	engine  *Engine
	cadence time.Duration
	logger  *slog.Logger
}

// RunResult describes one execution or schedule handled during a run.
type RunResult struct {
	ExecutionID string `json:"execution_id,omitempty"`
	ScheduleID  string `json:"schedule_id,omitempty"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

// RunSummary is the outcome of one scheduler pass.
type RunSummary struct {
	Checked    int         `json:"checked"`
	Resumed    int         `json:"resumed"`
	Originated int         `json:"originated"`
	Results    []RunResult `json:"results"`
}

// NewScheduler creates a resumption scheduler. A non-positive cadence falls
// back to DefaultCadence.
func NewScheduler(store persistence.Persistence, walker *Walker, engine *Engine, cadence time.Duration, logger *slog.Logger) *Scheduler {
	if cadence <= 0 {
		cadence = DefaultCadence
	}

	return &Scheduler{
		store:   store,
		walker:  walker,
		engine:  engine,
		cadence: cadence,
		logger:  logger.With("module", "scheduler"),
	}
}

// Run performs one scheduler pass at now. Safe to invoke concurrently or
// repeatedly: every resumption and reminder is claimed atomically first, so
// overlapping runs degrade to no-ops.
func (s *Scheduler) Run(ctx context.Context, now time.Time) (*RunSummary, error) {
	summary := &RunSummary{Results: []RunResult{}}

	if err := s.resumeDue(ctx, now, summary); err != nil {
		return summary, err
	}

	if err := s.originateReminders(ctx, now, summary); err != nil {
		return summary, err
	}

	s.logger.InfoContext(ctx, "Scheduler run completed",
		"checked", summary.Checked,
		"resumed", summary.Resumed,
		"originated", summary.Originated)

	return summary, nil
}

func (s *Scheduler) resumeDue(ctx context.Context, now time.Time, summary *RunSummary) error {
	tolerance := s.cadence / 2

	due, err := s.store.DueExecutions(ctx, now, tolerance)
	if err != nil {
		return err
	}

	summary.Checked = len(due)

	for _, execution := range due {
		result := s.resumeOne(ctx, now, execution)
		summary.Results = append(summary.Results, result)

		if result.Status == "resumed" {
			summary.Resumed++
		}
	}

	return nil
}

func (s *Scheduler) resumeOne(ctx context.Context, now time.Time, execution *models.Execution) RunResult {
	claimed, err := s.store.ClaimResumption(ctx, execution.ID, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to claim execution",
			"execution_id", execution.ID, "error", err)

		return RunResult{ExecutionID: execution.ID, Status: "error", Error: err.Error()}
	}

	if !claimed {
		// Another scheduler run got here first, or the execution was
		// cancelled out of band. Either way this resume is a no-op.
		s.appendSkippedEntry(ctx, execution)

		return RunResult{ExecutionID: execution.ID, Status: "skipped", Error: models.LogDetailAlreadyResumed}
	}

	resumedAt := now.UTC()
	execution.ResumedAt = &resumedAt

	s.logger.InfoContext(ctx, "Resuming execution",
		"execution_id", execution.ID, "flow_id", execution.FlowID, "resume_at", execution.ResumeAt)

	updated, err := s.walker.Resume(ctx, execution)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to resume execution",
			"execution_id", execution.ID, "error", err)

		return RunResult{ExecutionID: execution.ID, Status: "error", Error: err.Error()}
	}

	return RunResult{ExecutionID: updated.ID, Status: "resumed"}
}

// originateReminders synthesizes trigger events for scheduled orders whose
// reminder lead time has elapsed, so time-based campaigns (pickup reminders)
// flow through the same matching and execution path as action-based ones.
func (s *Scheduler) originateReminders(ctx context.Context, now time.Time, summary *RunSummary) error {
	due, err := s.store.DueOrderSchedules(ctx, now)
	if err != nil {
		return err
	}

	for _, schedule := range due {
		claimed, err := s.store.MarkReminded(ctx, schedule.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to claim order schedule",
				"schedule_id", schedule.ID, "error", err)
			summary.Results = append(summary.Results, RunResult{ScheduleID: schedule.ID, Status: "error", Error: err.Error()})

			continue
		}

		if !claimed {
			summary.Results = append(summary.Results, RunResult{ScheduleID: schedule.ID, Status: "skipped"})

			continue
		}

		event := events.TriggerEvent{
			Name: events.EventOrderReminder,
			Payload: map[string]any{
				"order_id":       schedule.OrderID,
				"customer_email": schedule.Recipient.Email,
				"customer_phone": schedule.Recipient.Phone,
				"user_id":        schedule.Recipient.UserID,
				"scheduled_at":   schedule.ScheduledAt.Format(time.RFC3339),
			},
			ReceivedAt: now.UTC(),
		}

		if _, err := s.engine.HandleEvent(ctx, event); err != nil {
			s.logger.ErrorContext(ctx, "Failed to originate reminder event",
				"schedule_id", schedule.ID, "error", err)
			summary.Results = append(summary.Results, RunResult{ScheduleID: schedule.ID, Status: "error", Error: err.Error()})

			continue
		}

		summary.Originated++
		summary.Results = append(summary.Results, RunResult{ScheduleID: schedule.ID, Status: "originated"})
	}

	return nil
}

func (s *Scheduler) appendSkippedEntry(ctx context.Context, execution *models.Execution) {
	entry := &models.ExecutionLogEntry{
		ID:          uuid.New().String(),
		ExecutionID: execution.ID,
		FlowID:      execution.FlowID,
		NodeID:      execution.CurrentNodeID,
		NodeKind:    models.NodeKindDelay,
		Outcome:     models.LogOutcomeSkipped,
		Attempt:     1,
		ErrorDetail: models.LogDetailAlreadyResumed,
		Timestamp:   time.Now().UTC(),
	}

	if err := s.store.AppendLogEntry(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "Failed to record skipped resume",
			"execution_id", execution.ID, "error", err)
	}
}
