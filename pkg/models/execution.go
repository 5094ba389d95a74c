package models

import "time"

// ExecutionStatus represents the lifecycle state of a single flow run.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusSuspended ExecutionStatus = "suspended"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// WaitReason records why a suspended execution is waiting, which decides how
// the scheduler re-enters the walker: a delay resumes at the delay node's
// successor, a throttle re-executes the deferred action node itself.
type WaitReason string

const (
	WaitReasonDelay    WaitReason = "delay"
	WaitReasonThrottle WaitReason = "throttle"
)

// Recipient is the delivery identity resolved from the triggering event.
type Recipient struct {
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// Address returns the identity used for the given channel.
func (r Recipient) Address(channel Channel) string {
	if channel == ChannelSMS {
		return r.Phone
	}

	return r.Email
}

// Execution is one run of a FlowDefinition for one triggering event and
// recipient. The current node pointer plus the execution log history fully
// describe its progress; suspension is a state write, never a blocked thread.
type Execution struct {
	ID            string          `json:"id"`
	FlowID        string          `json:"flow_id"`
	EventName     string          `json:"event_name"`
	EventPayload  map[string]any  `json:"event_payload,omitempty"`
	Recipient     Recipient       `json:"recipient"`
	CurrentNodeID string          `json:"current_node_id"`
	Status        ExecutionStatus `json:"status"`
	WaitReason    WaitReason      `json:"wait_reason,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	// ResumeAt is set only while Suspended.
	ResumeAt *time.Time `json:"resume_at,omitempty"`
	// ResumedAt is the scheduler's idempotency marker for the current
	// suspension; a claimed execution is never resumed twice.
	ResumedAt *time.Time `json:"resumed_at,omitempty"`
}

// Suspend parks the execution at the given node until resumeAt.
func (e *Execution) Suspend(nodeID string, reason WaitReason, resumeAt time.Time) {
	e.CurrentNodeID = nodeID
	e.Status = ExecutionStatusSuspended
	e.WaitReason = reason
	e.ResumeAt = &resumeAt
	e.ResumedAt = nil
	e.UpdatedAt = time.Now().UTC()
}

// Complete marks the execution as finished successfully.
func (e *Execution) Complete(nodeID string) {
	e.CurrentNodeID = nodeID
	e.Status = ExecutionStatusCompleted
	e.WaitReason = ""
	e.ResumeAt = nil
	e.UpdatedAt = time.Now().UTC()
}

// Fail terminates the execution with the given reason.
func (e *Execution) Fail(nodeID, reason string) {
	e.CurrentNodeID = nodeID
	e.Status = ExecutionStatusFailed
	e.FailureReason = reason
	e.WaitReason = ""
	e.ResumeAt = nil
	e.UpdatedAt = time.Now().UTC()
}

// IsDue reports whether a suspended execution should be resumed by a scheduler
// run at now, given the scheduler's tolerance window. The window exists because
// the polling cadence is coarser than arbitrary delay durations.
func (e *Execution) IsDue(now time.Time, tolerance time.Duration) bool {
	if e.Status != ExecutionStatusSuspended || e.ResumeAt == nil {
		return false
	}

	return !e.ResumeAt.After(now.Add(tolerance))
}
