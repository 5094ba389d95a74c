package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecution_SuspendAndComplete(t *testing.T) {
	exec := &Execution{
		ID:     "exec-1",
		FlowID: "flow-1",
		Status: ExecutionStatusRunning,
	}

	resumeAt := time.Now().UTC().Add(time.Hour)
	exec.Suspend("d1", WaitReasonDelay, resumeAt)

	assert.Equal(t, ExecutionStatusSuspended, exec.Status)
	assert.Equal(t, WaitReasonDelay, exec.WaitReason)
	assert.Equal(t, "d1", exec.CurrentNodeID)
	require.NotNil(t, exec.ResumeAt)
	assert.Equal(t, resumeAt, *exec.ResumeAt)
	assert.Nil(t, exec.ResumedAt)

	exec.Complete("a2")

	assert.Equal(t, ExecutionStatusCompleted, exec.Status)
	assert.Empty(t, exec.WaitReason)
	assert.Nil(t, exec.ResumeAt)
}

func TestExecution_Fail(t *testing.T) {
	exec := &Execution{ID: "exec-1", Status: ExecutionStatusRunning}

	exec.Fail("a1", "send failed after 3 attempts")

	assert.Equal(t, ExecutionStatusFailed, exec.Status)
	assert.Equal(t, "send failed after 3 attempts", exec.FailureReason)
	assert.Nil(t, exec.ResumeAt)
}

func TestExecution_IsDue(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tolerance := 150 * time.Second

	tests := []struct {
		name     string
		status   ExecutionStatus
		resumeAt *time.Time
		want     bool
	}{
		{
			name:     "past resume time",
			status:   ExecutionStatusSuspended,
			resumeAt: timePtr(now.Add(-time.Minute)),
			want:     true,
		},
		{
			name:     "exactly now",
			status:   ExecutionStatusSuspended,
			resumeAt: timePtr(now),
			want:     true,
		},
		{
			name:     "within tolerance window",
			status:   ExecutionStatusSuspended,
			resumeAt: timePtr(now.Add(2 * time.Minute)),
			want:     true,
		},
		{
			name:     "beyond tolerance window",
			status:   ExecutionStatusSuspended,
			resumeAt: timePtr(now.Add(10 * time.Minute)),
			want:     false,
		},
		{
			name:     "not suspended",
			status:   ExecutionStatusRunning,
			resumeAt: timePtr(now.Add(-time.Minute)),
			want:     false,
		},
		{
			name:   "no resume time",
			status: ExecutionStatusSuspended,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &Execution{Status: tt.status, ResumeAt: tt.resumeAt}
			assert.Equal(t, tt.want, exec.IsDue(now, tolerance))
		})
	}
}

func TestRecipient_Address(t *testing.T) {
	recipient := Recipient{Email: "guest@example.com", Phone: "+15551234567"}

	assert.Equal(t, "guest@example.com", recipient.Address(ChannelEmail))
	assert.Equal(t, "+15551234567", recipient.Address(ChannelSMS))
}

func timePtr(t time.Time) *time.Time {
	return &t
}
