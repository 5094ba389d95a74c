package models

import (
	"errors"
	"fmt"
)

// Graph structure errors surfaced by ValidateGraph.
var (
	ErrNoTriggerNode        = errors.New("flow must have exactly one trigger node")
	ErrMultipleTriggerNodes = errors.New("flow has more than one trigger node")
	ErrTriggerHasIncoming   = errors.New("trigger node must not have incoming edges")
	ErrUnreachableNode      = errors.New("node is not reachable from the trigger")
	ErrGraphCycle           = errors.New("flow graph contains a cycle")
	ErrDanglingEdge         = errors.New("edge references a missing node")
	ErrConditionEdges       = errors.New("condition node must have true and false edges")
)

// ValidateGraph enforces the structural invariants of a flow graph: exactly
// one trigger node with no incoming edges, every other node reachable from the
// trigger, no cycles, and both labeled branches present on condition nodes.
// Node configs are decoded to catch authoring mistakes before activation.
func (f *FlowDefinition) ValidateGraph() error {
	nodes := make(map[string]*Node, len(f.Nodes))
	for _, node := range f.Nodes {
		nodes[node.ID] = node
	}

	var trigger *Node

	for _, node := range f.Nodes {
		if node.Kind == NodeKindTrigger {
			if trigger != nil {
				return fmt.Errorf("%w: %s and %s", ErrMultipleTriggerNodes, trigger.ID, node.ID)
			}

			trigger = node
		}
	}

	if trigger == nil {
		return ErrNoTriggerNode
	}

	incoming := make(map[string]int, len(f.Nodes))

	for _, edge := range f.Edges {
		if _, ok := nodes[edge.SourceID]; !ok {
			return fmt.Errorf("%w: edge %s source %s", ErrDanglingEdge, edge.ID, edge.SourceID)
		}

		if _, ok := nodes[edge.TargetID]; !ok {
			return fmt.Errorf("%w: edge %s target %s", ErrDanglingEdge, edge.ID, edge.TargetID)
		}

		incoming[edge.TargetID]++
	}

	if incoming[trigger.ID] > 0 {
		return fmt.Errorf("%w: %s", ErrTriggerHasIncoming, trigger.ID)
	}

	if err := f.validateNodeConfigs(); err != nil {
		return err
	}

	// Reachability walk from the trigger; revisiting a node on the stack
	// means a cycle.
	visited := make(map[string]bool, len(f.Nodes))
	if err := f.walkAcyclic(trigger.ID, visited, make(map[string]bool)); err != nil {
		return err
	}

	for _, node := range f.Nodes {
		if !visited[node.ID] {
			return fmt.Errorf("%w: %s", ErrUnreachableNode, node.ID)
		}
	}

	return nil
}

func (f *FlowDefinition) validateNodeConfigs() error {
	for _, node := range f.Nodes {
		var err error

		switch node.Kind {
		case NodeKindTrigger:
			_, err = node.TriggerConfig()
		case NodeKindAction:
			_, err = node.ActionConfig()
		case NodeKindDelay:
			_, err = node.DelayConfig()
		case NodeKindCondition:
			if _, err = node.ConditionConfig(); err == nil {
				err = f.validateConditionEdges(node.ID)
			}
		default:
			err = fmt.Errorf("%w: node %s has unknown kind %q", ErrInvalidNodeConfig, node.ID, node.Kind)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func (f *FlowDefinition) validateConditionEdges(nodeID string) error {
	if _, ok := f.BranchTargetID(nodeID, EdgeLabelTrue); !ok {
		return fmt.Errorf("%w: node %s missing true edge", ErrConditionEdges, nodeID)
	}

	if _, ok := f.BranchTargetID(nodeID, EdgeLabelFalse); !ok {
		return fmt.Errorf("%w: node %s missing false edge", ErrConditionEdges, nodeID)
	}

	return nil
}

func (f *FlowDefinition) walkAcyclic(nodeID string, visited, stack map[string]bool) error {
	if stack[nodeID] {
		return fmt.Errorf("%w: at node %s", ErrGraphCycle, nodeID)
	}

	if visited[nodeID] {
		return nil
	}

	visited[nodeID] = true
	stack[nodeID] = true

	for _, edge := range f.OutgoingEdges(nodeID) {
		if err := f.walkAcyclic(edge.TargetID, visited, stack); err != nil {
			return err
		}
	}

	stack[nodeID] = false

	return nil
}
