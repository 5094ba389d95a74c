package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dineflow/dineflow/pkg/models"
	"github.com/dineflow/dineflow/pkg/persistence"
)

func sampleFlow(id string, status models.FlowStatus) *models.FlowDefinition {
	return &models.FlowDefinition{
		ID:     id,
		Name:   "Flow " + id,
		Status: status,
		Nodes: []*models.Node{
			{ID: "t1", Kind: models.NodeKindTrigger, Name: "Trigger", Config: map[string]any{"event_name": "order_created"}},
			{ID: "a1", Kind: models.NodeKindAction, Name: "Email", Config: map[string]any{"channel": "email", "template_id": "welcome"}},
		},
		Edges:     []*models.Edge{{ID: "e1", SourceID: "t1", TargetID: "a1"}},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestFlowRepository_SaveAndGet(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()

	flow := sampleFlow("flow-1", models.FlowStatusDraft)
	require.NoError(t, store.SaveFlow(ctx, flow))

	loaded, err := store.FlowByID(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, flow.Name, loaded.Name)
	assert.Equal(t, models.FlowStatusDraft, loaded.Status)
	require.Len(t, loaded.Nodes, 2)
	assert.Equal(t, "order_created", loaded.Nodes[0].Config["event_name"])
}

func TestFlowRepository_GetNotFound(t *testing.T) {
	store := NewPersistence(t.TempDir())

	_, err := store.FlowByID(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrFlowNotFound)
}

func TestFlowRepository_ActiveFlows(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.SaveFlow(ctx, sampleFlow("flow-draft", models.FlowStatusDraft)))
	require.NoError(t, store.SaveFlow(ctx, sampleFlow("flow-active", models.FlowStatusActive)))
	require.NoError(t, store.SaveFlow(ctx, sampleFlow("flow-retired", models.FlowStatusInactive)))

	active, err := store.ActiveFlows(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "flow-active", active[0].ID)

	all, err := store.Flows(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFlowRepository_Delete(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.SaveFlow(ctx, sampleFlow("flow-1", models.FlowStatusDraft)))
	require.NoError(t, store.DeleteFlow(ctx, "flow-1"))

	_, err := store.FlowByID(ctx, "flow-1")
	assert.ErrorIs(t, err, persistence.ErrFlowNotFound)

	err = store.DeleteFlow(ctx, "flow-1")
	assert.ErrorIs(t, err, persistence.ErrFlowNotFound)
}

func TestFlowRepository_RejectsPathEscapingIDs(t *testing.T) {
	store := NewPersistence(t.TempDir())

	for _, id := range []string{"", "../escape", `a\b`, "a/b"} {
		err := store.SaveFlow(context.Background(), sampleFlow(id, models.FlowStatusDraft))
		assert.Error(t, err, "id %q", id)
	}
}

func TestExecutionRepository_SaveAndGet(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()

	execution := &models.Execution{
		ID:            "exec-1",
		FlowID:        "flow-1",
		EventName:     "order_created",
		EventPayload:  map[string]any{"order_id": "order-42"},
		Recipient:     models.Recipient{Email: "guest@example.com"},
		CurrentNodeID: "a1",
		Status:        models.ExecutionStatusRunning,
		CreatedAt:     time.Now().UTC(),
	}

	require.NoError(t, store.SaveExecution(ctx, execution))

	loaded, err := store.ExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, loaded.Status)
	assert.Equal(t, "guest@example.com", loaded.Recipient.Email)

	_, err = store.ExecutionByID(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrExecutionNotFound)
}

func TestExecutionRepository_DueExecutions(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	suspend := func(id string, resumeAt time.Time) {
		execution := &models.Execution{ID: id, FlowID: "flow-1", Status: models.ExecutionStatusRunning}
		execution.Suspend("d1", models.WaitReasonDelay, resumeAt)
		require.NoError(t, store.SaveExecution(ctx, execution))
	}

	suspend("exec-due", now.Add(-time.Minute))
	suspend("exec-borderline", now.Add(2*time.Minute))
	suspend("exec-later", now.Add(time.Hour))

	completed := &models.Execution{ID: "exec-done", FlowID: "flow-1", Status: models.ExecutionStatusCompleted}
	require.NoError(t, store.SaveExecution(ctx, completed))

	due, err := store.DueExecutions(ctx, now, 150*time.Second)
	require.NoError(t, err)

	ids := make([]string, 0, len(due))
	for _, execution := range due {
		ids = append(ids, execution.ID)
	}

	assert.ElementsMatch(t, []string{"exec-due", "exec-borderline"}, ids)
}

func TestExecutionRepository_ClaimResumption(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()
	now := time.Now().UTC()

	execution := &models.Execution{ID: "exec-1", FlowID: "flow-1", Status: models.ExecutionStatusRunning}
	execution.Suspend("d1", models.WaitReasonDelay, now.Add(-time.Minute))
	require.NoError(t, store.SaveExecution(ctx, execution))

	claimed, err := store.ClaimResumption(ctx, "exec-1", now)
	require.NoError(t, err)
	assert.True(t, claimed)

	// The second claim must lose.
	claimed, err = store.ClaimResumption(ctx, "exec-1", now)
	require.NoError(t, err)
	assert.False(t, claimed)

	loaded, err := store.ExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	require.NotNil(t, loaded.ResumedAt)
}

func TestExecutionRepository_ClaimNonSuspended(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()

	execution := &models.Execution{ID: "exec-1", FlowID: "flow-1", Status: models.ExecutionStatusCompleted}
	require.NoError(t, store.SaveExecution(ctx, execution))

	claimed, err := store.ClaimResumption(ctx, "exec-1", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, claimed)

	_, err = store.ClaimResumption(ctx, "missing", time.Now().UTC())
	assert.ErrorIs(t, err, persistence.ErrExecutionNotFound)
}

func TestExecutionLog_AppendAndQuery(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	appendEntry := func(id, executionID string, outcome models.LogOutcome, at time.Time) {
		entry := &models.ExecutionLogEntry{
			ID:          id,
			ExecutionID: executionID,
			FlowID:      "flow-1",
			NodeID:      "a1",
			NodeKind:    models.NodeKindAction,
			Outcome:     outcome,
			Attempt:     1,
			Timestamp:   at,
		}
		require.NoError(t, store.AppendLogEntry(ctx, entry))
	}

	appendEntry("log-2", "exec-1", models.LogOutcomeSuccess, base.Add(time.Second))
	appendEntry("log-1", "exec-1", models.LogOutcomeFailed, base)
	appendEntry("log-3", "exec-other", models.LogOutcomeSuccess, base)

	entries, err := store.LogEntries(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "log-1", entries[0].ID)
	assert.Equal(t, "log-2", entries[1].ID)
}

func TestExecutionLog_FlowStats(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()

	saveExecution := func(id string, status models.ExecutionStatus, failureReason string) {
		execution := &models.Execution{
			ID:            id,
			FlowID:        "flow-1",
			Status:        status,
			FailureReason: failureReason,
		}
		require.NoError(t, store.SaveExecution(ctx, execution))
	}

	saveExecution("exec-ok-1", models.ExecutionStatusCompleted, "")
	saveExecution("exec-ok-2", models.ExecutionStatusCompleted, "")
	saveExecution("exec-failed", models.ExecutionStatusFailed, "send failed after 3 attempts")
	saveExecution("exec-cycle", models.ExecutionStatusFailed, models.LogDetailCycleDetected)
	saveExecution("exec-running", models.ExecutionStatusRunning, "")

	// A trigger-stage failure has no execution record but still counts.
	require.NoError(t, store.AppendLogEntry(ctx, &models.ExecutionLogEntry{
		ID:          "log-trigger",
		FlowID:      "flow-1",
		NodeID:      "t1",
		NodeKind:    models.NodeKindTrigger,
		Outcome:     models.LogOutcomeFailed,
		Attempt:     1,
		ErrorDetail: models.LogDetailNoRecipient,
		Timestamp:   time.Now().UTC(),
	}))

	stats, err := store.FlowStats(ctx, "flow-1")
	require.NoError(t, err)

	assert.Equal(t, 6, stats.TotalExecutions)
	assert.Equal(t, 2, stats.SuccessCount)
	assert.Equal(t, 3, stats.FailureCount)
	assert.Equal(t, 1, stats.StructuralCount)
}

func TestOrderScheduleRepository_DueAndClaim(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 17, 30, 0, 0, time.UTC)

	due, err := models.NewOrderSchedule("sched-due", "order-1",
		models.Recipient{Email: "guest@example.com"}, now.Add(30*time.Minute), time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.SaveOrderSchedule(ctx, due))

	early, err := models.NewOrderSchedule("sched-early", "order-2",
		models.Recipient{Email: "guest@example.com"}, now.Add(3*time.Hour), time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.SaveOrderSchedule(ctx, early))

	found, err := store.DueOrderSchedules(ctx, now)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "sched-due", found[0].ID)

	claimed, err := store.MarkReminded(ctx, "sched-due")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.MarkReminded(ctx, "sched-due")
	require.NoError(t, err)
	assert.False(t, claimed)

	found, err = store.DueOrderSchedules(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = store.MarkReminded(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrScheduleNotFound)
}

func TestPersistence_HealthCheck(t *testing.T) {
	store := NewPersistence(t.TempDir())

	require.NoError(t, store.HealthCheck(context.Background()))
	require.NoError(t, store.Close(context.Background()))
}
