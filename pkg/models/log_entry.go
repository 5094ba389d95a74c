package models

import "time"

// LogOutcome is the recorded result of one node execution attempt.
type LogOutcome string

const (
	LogOutcomeSuccess LogOutcome = "success"
	LogOutcomeFailed  LogOutcome = "failed"
	LogOutcomeSkipped LogOutcome = "skipped"
)

// Well-known error details recorded on log entries.
const (
	LogDetailNoRecipient     = "no recipient"
	LogDetailCycleDetected   = "cycle detected"
	LogDetailAlreadyResumed  = "already resumed"
	LogDetailConditionFailed = "condition evaluation failed, took false branch"
)

// ExecutionLogEntry is an immutable, append-only audit record of one node
// execution attempt. Retries of the same action reuse the node id with an
// incremented attempt counter; no entry is ever updated or deleted by the
// engine.
type ExecutionLogEntry struct {
	ID          string     `json:"id"`
	ExecutionID string     `json:"execution_id"`
	FlowID      string     `json:"flow_id"`
	NodeID      string     `json:"node_id"`
	NodeKind    NodeKind   `json:"node_kind"`
	Outcome     LogOutcome `json:"outcome"`
	Attempt     int        `json:"attempt"`
	ErrorDetail string     `json:"error_detail,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}
