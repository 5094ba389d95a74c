package flow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dineflow/dineflow/pkg/channels"
	"github.com/dineflow/dineflow/pkg/models"
)

type schedulerFixture struct {
	*walkerFixture
	scheduler *Scheduler
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()

	wf := newWalkerFixture(t, nil, nil)
	matcher := NewMatcher(wf.store, wf.store, testLogger())
	engine := NewEngine(wf.store, matcher, wf.walker, testLogger())

	return &schedulerFixture{
		walkerFixture: wf,
		scheduler:     NewScheduler(wf.store, wf.walker, engine, 5*time.Minute, testLogger()),
	}
}

func (f *schedulerFixture) saveDelayFlow(t *testing.T) *models.FlowDefinition {
	t.Helper()

	flow := &models.FlowDefinition{
		ID:     "flow-delay",
		Name:   "Welcome Then Follow Up",
		Status: models.FlowStatusActive,
		Nodes: []*models.Node{
			newTriggerNode("t1", "order_created"),
			newDelayNode("d1", 60),
			newEmailNode("a2", "followup"),
		},
		Edges: []*models.Edge{
			plainEdge("e1", "t1", "d1"),
			plainEdge("e2", "d1", "a2"),
		},
	}
	f.saveFlow(t, flow)

	return flow
}

func (f *schedulerFixture) saveSuspended(t *testing.T, flowID string, resumeAt time.Time) *models.Execution {
	t.Helper()

	execution := newRunningExecution(flowID, "d1")
	execution.Suspend("d1", models.WaitReasonDelay, resumeAt)
	require.NoError(t, f.store.SaveExecution(context.Background(), execution))

	return execution
}

func TestScheduler_ResumesDueExecution(t *testing.T) {
	f := newSchedulerFixture(t)
	flow := f.saveDelayFlow(t)
	execution := f.saveSuspended(t, flow.ID, testTime.Add(-time.Minute))

	f.email.On("SendEmail", mock.Anything, "guest@example.com", "How was it?", mock.Anything, mock.Anything).
		Return(channels.SendResult{Success: true}, nil).Once()

	summary, err := f.scheduler.Run(context.Background(), testTime)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, summary.Resumed)
	f.email.AssertExpectations(t)

	stored, err := f.store.ExecutionByID(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)
	require.NotNil(t, stored.ResumedAt)
}

func TestScheduler_ResumeWithinToleranceWindow(t *testing.T) {
	f := newSchedulerFixture(t)
	flow := f.saveDelayFlow(t)

	// Resume time falls just inside half the cadence past now.
	f.saveSuspended(t, flow.ID, testTime.Add(2*time.Minute))

	f.email.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(channels.SendResult{Success: true}, nil)

	summary, err := f.scheduler.Run(context.Background(), testTime)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Resumed)
}

func TestScheduler_NotYetDueIsLeftAlone(t *testing.T) {
	f := newSchedulerFixture(t)
	flow := f.saveDelayFlow(t)
	execution := f.saveSuspended(t, flow.ID, testTime.Add(30*time.Minute))

	summary, err := f.scheduler.Run(context.Background(), testTime)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Checked)
	assert.Equal(t, 0, summary.Resumed)
	f.email.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	stored, err := f.store.ExecutionByID(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSuspended, stored.Status)
}

func TestScheduler_AlreadyClaimedIsSkipped(t *testing.T) {
	f := newSchedulerFixture(t)
	flow := f.saveDelayFlow(t)
	execution := f.saveSuspended(t, flow.ID, testTime.Add(-time.Minute))

	// Another scheduler run claimed this execution already.
	claimed, err := f.store.ClaimResumption(context.Background(), execution.ID, testTime)
	require.NoError(t, err)
	require.True(t, claimed)

	summary, err := f.scheduler.Run(context.Background(), testTime)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 0, summary.Resumed)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "skipped", summary.Results[0].Status)

	f.email.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	entries := f.entries(t, execution.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.LogOutcomeSkipped, entries[0].Outcome)
	assert.Equal(t, models.LogDetailAlreadyResumed, entries[0].ErrorDetail)
}

func TestScheduler_RerunAfterResumeIsNoOp(t *testing.T) {
	f := newSchedulerFixture(t)
	flow := f.saveDelayFlow(t)
	f.saveSuspended(t, flow.ID, testTime.Add(-time.Minute))

	f.email.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(channels.SendResult{Success: true}, nil).Once()

	_, err := f.scheduler.Run(context.Background(), testTime)
	require.NoError(t, err)

	summary, err := f.scheduler.Run(context.Background(), testTime.Add(5*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Checked)
	assert.Equal(t, 0, summary.Resumed)
	f.email.AssertNumberOfCalls(t, "SendEmail", 1)
}

func TestScheduler_OriginatesOrderReminder(t *testing.T) {
	f := newSchedulerFixture(t)

	flow := &models.FlowDefinition{
		ID:     "flow-reminder",
		Name:   "Pickup Reminder",
		Status: models.FlowStatusActive,
		Nodes: []*models.Node{
			newTriggerNode("t1", "order_reminder_due"),
			newSMSNode("a1", "order-ready"),
		},
		Edges: []*models.Edge{plainEdge("e1", "t1", "a1")},
	}
	f.saveFlow(t, flow)

	schedule, err := models.NewOrderSchedule("sched-1", "order-42",
		models.Recipient{Email: "guest@example.com", Phone: "+15551234567"},
		testTime.Add(time.Hour), time.Hour+5*time.Minute)
	require.NoError(t, err)
	require.NoError(t, f.store.SaveOrderSchedule(context.Background(), schedule))

	f.sms.On("SendSMS", mock.Anything, "+15551234567", "Order order-42 is ready").
		Return(channels.SendResult{Success: true}, nil).Once()

	summary, err := f.scheduler.Run(context.Background(), testTime)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Originated)
	f.sms.AssertExpectations(t)

	executions, err := f.store.ExecutionsByFlow(context.Background(), flow.ID)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, models.ExecutionStatusCompleted, executions[0].Status)
	assert.Equal(t, "order-42", executions[0].EventPayload["order_id"])

	// The reminder is claimed; a second pass must not re-fire it.
	summary, err = f.scheduler.Run(context.Background(), testTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Originated)
	f.sms.AssertNumberOfCalls(t, "SendSMS", 1)
}

func TestScheduler_PassedSlotNotReminded(t *testing.T) {
	f := newSchedulerFixture(t)

	schedule, err := models.NewOrderSchedule("sched-late", "order-9",
		models.Recipient{Email: "guest@example.com"},
		testTime.Add(-time.Minute), time.Hour)
	require.NoError(t, err)
	require.NoError(t, f.store.SaveOrderSchedule(context.Background(), schedule))

	summary, err := f.scheduler.Run(context.Background(), testTime)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Originated)
}
