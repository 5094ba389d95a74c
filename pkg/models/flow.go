// Package models defines the core domain models for campaign flow automation.
package models

import "time"

// FlowStatus represents the lifecycle state of a flow definition.
type FlowStatus string

const (
	FlowStatusDraft    FlowStatus = "draft"    // Editable, never executed
	FlowStatusActive   FlowStatus = "active"   // Matched against incoming events
	FlowStatusInactive FlowStatus = "inactive" // Retired, in-flight executions may finish
)

// FlowDefinition is an authored campaign automation graph: one trigger node
// followed by action, delay and condition nodes connected by edges.
// The engine treats it as read-only; mutation happens only through the
// authoring service.
type FlowDefinition struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"        validate:"required,min=3"`
	Description string     `json:"description"`
	Status      FlowStatus `json:"status"      validate:"required"`
	Nodes       []*Node    `json:"nodes"`
	Edges       []*Edge    `json:"edges"`
	Owner       string     `json:"owner"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// FlowStats are aggregate counters derived from the execution log. They are
// non-authoritative caches and can be rebuilt from the log at any time.
type FlowStats struct {
	FlowID          string `json:"flow_id"`
	TotalExecutions int    `json:"total_executions"`
	SuccessCount    int    `json:"success_count"`
	FailureCount    int    `json:"failure_count"`
	StructuralCount int    `json:"structural_count"` // cycle or graph errors, surfaced as flow-health warnings
}

// Edge connects two nodes. Label is empty for plain edges and "true"/"false"
// for the two outgoing edges of a condition node.
type Edge struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id" validate:"required"`
	TargetID string `json:"target_id" validate:"required"`
	Label    string `json:"label,omitempty"`
}

// Condition edge labels.
const (
	EdgeLabelTrue  = "true"
	EdgeLabelFalse = "false"
)

// IsActive reports whether the flow participates in trigger matching.
func (f *FlowDefinition) IsActive() bool {
	return f.Status == FlowStatusActive
}

// TriggerNode returns the flow's single trigger node, or nil when the graph
// has none (invalid graphs are rejected at authoring time).
func (f *FlowDefinition) TriggerNode() *Node {
	for _, node := range f.Nodes {
		if node.Kind == NodeKindTrigger {
			return node
		}
	}

	return nil
}

// NodeByID returns the node with the given id.
func (f *FlowDefinition) NodeByID(id string) (*Node, bool) {
	for _, node := range f.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}

// OutgoingEdges returns all edges leaving the given node, in authored order.
func (f *FlowDefinition) OutgoingEdges(nodeID string) []*Edge {
	var out []*Edge

	for _, edge := range f.Edges {
		if edge.SourceID == nodeID {
			out = append(out, edge)
		}
	}

	return out
}

// NextNodeID follows the first outgoing edge of a node. It returns false when
// the node is terminal.
func (f *FlowDefinition) NextNodeID(nodeID string) (string, bool) {
	edges := f.OutgoingEdges(nodeID)
	if len(edges) == 0 {
		return "", false
	}

	return edges[0].TargetID, true
}

// BranchTargetID follows the condition edge with the given label.
func (f *FlowDefinition) BranchTargetID(nodeID, label string) (string, bool) {
	for _, edge := range f.OutgoingEdges(nodeID) {
		if edge.Label == label {
			return edge.TargetID, true
		}
	}

	return "", false
}
