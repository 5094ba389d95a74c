package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triggerNode(id string) *Node {
	return &Node{
		ID:   id,
		Kind: NodeKindTrigger,
		Name: "Trigger",
		Config: map[string]any{
			"event_name": "order_created",
		},
	}
}

func actionNode(id string) *Node {
	return &Node{
		ID:   id,
		Kind: NodeKindAction,
		Name: "Send Email",
		Config: map[string]any{
			"channel":     "email",
			"template_id": "welcome",
		},
	}
}

func delayNode(id string) *Node {
	return &Node{
		ID:   id,
		Kind: NodeKindDelay,
		Name: "Wait",
		Config: map[string]any{
			"value": 60,
			"unit":  "minutes",
		},
	}
}

func conditionNode(id string) *Node {
	return &Node{
		ID:   id,
		Kind: NodeKindCondition,
		Name: "High Value?",
		Config: map[string]any{
			"expression": "cartTotal > 50",
		},
	}
}

func edge(id, source, target string) *Edge {
	return &Edge{ID: id, SourceID: source, TargetID: target}
}

func labeledEdge(id, source, target, label string) *Edge {
	return &Edge{ID: id, SourceID: source, TargetID: target, Label: label}
}

func TestValidateGraph_LinearFlow(t *testing.T) {
	flow := &FlowDefinition{
		ID:     "flow-1",
		Name:   "Welcome Series",
		Status: FlowStatusDraft,
		Nodes:  []*Node{triggerNode("t1"), actionNode("a1"), delayNode("d1"), actionNode("a2")},
		Edges: []*Edge{
			edge("e1", "t1", "a1"),
			edge("e2", "a1", "d1"),
			edge("e3", "d1", "a2"),
		},
	}

	require.NoError(t, flow.ValidateGraph())
}

func TestValidateGraph_ConditionBranches(t *testing.T) {
	flow := &FlowDefinition{
		ID:     "flow-branch",
		Name:   "Branching",
		Status: FlowStatusDraft,
		Nodes:  []*Node{triggerNode("t1"), conditionNode("c1"), actionNode("a1"), actionNode("a2")},
		Edges: []*Edge{
			edge("e1", "t1", "c1"),
			labeledEdge("e2", "c1", "a1", EdgeLabelTrue),
			labeledEdge("e3", "c1", "a2", EdgeLabelFalse),
		},
	}

	require.NoError(t, flow.ValidateGraph())
}

func TestValidateGraph_Errors(t *testing.T) {
	tests := []struct {
		name    string
		nodes   []*Node
		edges   []*Edge
		wantErr error
	}{
		{
			name:    "no trigger node",
			nodes:   []*Node{actionNode("a1")},
			edges:   []*Edge{},
			wantErr: ErrNoTriggerNode,
		},
		{
			name:    "two trigger nodes",
			nodes:   []*Node{triggerNode("t1"), triggerNode("t2"), actionNode("a1")},
			edges:   []*Edge{edge("e1", "t1", "a1"), edge("e2", "t2", "a1")},
			wantErr: ErrMultipleTriggerNodes,
		},
		{
			name:    "trigger with incoming edge",
			nodes:   []*Node{triggerNode("t1"), actionNode("a1")},
			edges:   []*Edge{edge("e1", "t1", "a1"), edge("e2", "a1", "t1")},
			wantErr: ErrTriggerHasIncoming,
		},
		{
			name:    "unreachable node",
			nodes:   []*Node{triggerNode("t1"), actionNode("a1"), actionNode("orphan")},
			edges:   []*Edge{edge("e1", "t1", "a1")},
			wantErr: ErrUnreachableNode,
		},
		{
			name:  "cycle between actions",
			nodes: []*Node{triggerNode("t1"), actionNode("a1"), actionNode("a2")},
			edges: []*Edge{
				edge("e1", "t1", "a1"),
				edge("e2", "a1", "a2"),
				edge("e3", "a2", "a1"),
			},
			wantErr: ErrGraphCycle,
		},
		{
			name:    "dangling edge target",
			nodes:   []*Node{triggerNode("t1"), actionNode("a1")},
			edges:   []*Edge{edge("e1", "t1", "a1"), edge("e2", "a1", "ghost")},
			wantErr: ErrDanglingEdge,
		},
		{
			name:  "condition missing false branch",
			nodes: []*Node{triggerNode("t1"), conditionNode("c1"), actionNode("a1")},
			edges: []*Edge{
				edge("e1", "t1", "c1"),
				labeledEdge("e2", "c1", "a1", EdgeLabelTrue),
			},
			wantErr: ErrConditionEdges,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := &FlowDefinition{
				ID:     "flow-x",
				Name:   "Invalid",
				Status: FlowStatusDraft,
				Nodes:  tt.nodes,
				Edges:  tt.edges,
			}

			err := flow.ValidateGraph()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateGraph_InvalidNodeConfig(t *testing.T) {
	badAction := &Node{
		ID:   "a1",
		Kind: NodeKindAction,
		Name: "Broken",
		Config: map[string]any{
			"channel": "carrier-pigeon",
		},
	}

	flow := &FlowDefinition{
		ID:     "flow-bad",
		Name:   "Bad Config",
		Status: FlowStatusDraft,
		Nodes:  []*Node{triggerNode("t1"), badAction},
		Edges:  []*Edge{edge("e1", "t1", "a1")},
	}

	err := flow.ValidateGraph()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidNodeConfig)
}

func TestFlowDefinition_NextNodeID(t *testing.T) {
	flow := &FlowDefinition{
		Nodes: []*Node{triggerNode("t1"), actionNode("a1")},
		Edges: []*Edge{edge("e1", "t1", "a1")},
	}

	next, ok := flow.NextNodeID("t1")
	require.True(t, ok)
	assert.Equal(t, "a1", next)

	_, ok = flow.NextNodeID("a1")
	assert.False(t, ok)
}

func TestFlowDefinition_BranchTargetID(t *testing.T) {
	flow := &FlowDefinition{
		Nodes: []*Node{triggerNode("t1"), conditionNode("c1"), actionNode("a1"), actionNode("a2")},
		Edges: []*Edge{
			edge("e1", "t1", "c1"),
			labeledEdge("e2", "c1", "a1", EdgeLabelTrue),
			labeledEdge("e3", "c1", "a2", EdgeLabelFalse),
		},
	}

	target, ok := flow.BranchTargetID("c1", EdgeLabelTrue)
	require.True(t, ok)
	assert.Equal(t, "a1", target)

	target, ok = flow.BranchTargetID("c1", EdgeLabelFalse)
	require.True(t, ok)
	assert.Equal(t, "a2", target)
}
