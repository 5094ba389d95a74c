package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dineflow/dineflow/pkg/models"
	"github.com/dineflow/dineflow/pkg/persistence"
)

// Flow is the authoring service over flow definitions. The engine never
// writes through here; this is the marketing admin's surface.
type Flow struct {
	store    persistence.Persistence
	validate *validator.Validate
}

// NewFlow creates the flow authoring service.
func NewFlow(store persistence.Persistence) *Flow {
	return &Flow{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ListFlows returns all flow definitions.
func (s *Flow) ListFlows(ctx context.Context) ([]*models.FlowDefinition, error) {
	return s.store.Flows(ctx)
}

// GetFlow returns one flow definition.
func (s *Flow) GetFlow(ctx context.Context, id string) (*models.FlowDefinition, error) {
	return s.store.FlowByID(ctx, id)
}

// CreateFlow validates and stores a new draft flow.
func (s *Flow) CreateFlow(ctx context.Context, flow *models.FlowDefinition) (*models.FlowDefinition, error) {
	if flow == nil {
		return nil, NewValidationError("CreateFlow", "flow_nil", "flow cannot be nil", ErrFlowNil)
	}

	now := time.Now().UTC()

	if flow.ID == "" {
		flow.ID = "flow-" + uuid.New().String()[:8]
	}

	flow.Status = models.FlowStatusDraft
	flow.CreatedAt = now
	flow.UpdatedAt = now

	if err := s.validateFlow(flow); err != nil {
		return nil, err
	}

	if err := s.store.SaveFlow(ctx, flow); err != nil {
		return nil, err
	}

	return flow, nil
}

// UpdateFlow replaces a draft or inactive flow's definition. Active flows are
// immutable; deactivate first.
func (s *Flow) UpdateFlow(ctx context.Context, id string, updated *models.FlowDefinition) (*models.FlowDefinition, error) {
	existing, err := s.store.FlowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if existing.Status == models.FlowStatusActive {
		return nil, &ServiceError{Op: "UpdateFlow", Code: "flow_active", Message: "deactivate the flow before editing", Err: ErrCannotModifyActive}
	}

	updated.ID = existing.ID
	updated.Status = existing.Status
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	if err := s.validateFlow(updated); err != nil {
		return nil, err
	}

	if err := s.store.SaveFlow(ctx, updated); err != nil {
		return nil, err
	}

	return updated, nil
}

// ActivateFlow runs full graph validation and marks the flow active.
func (s *Flow) ActivateFlow(ctx context.Context, id string) (*models.FlowDefinition, error) {
	flow, err := s.store.FlowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.validateFlow(flow); err != nil {
		return nil, err
	}

	flow.Status = models.FlowStatusActive
	flow.UpdatedAt = time.Now().UTC()

	if err := s.store.SaveFlow(ctx, flow); err != nil {
		return nil, err
	}

	return flow, nil
}

// DeactivateFlow stops a flow from matching new events. In-flight executions
// are allowed to finish.
func (s *Flow) DeactivateFlow(ctx context.Context, id string) (*models.FlowDefinition, error) {
	flow, err := s.store.FlowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	flow.Status = models.FlowStatusInactive
	flow.UpdatedAt = time.Now().UTC()

	if err := s.store.SaveFlow(ctx, flow); err != nil {
		return nil, err
	}

	return flow, nil
}

// DeleteFlow removes a non-active flow definition.
func (s *Flow) DeleteFlow(ctx context.Context, id string) error {
	flow, err := s.store.FlowByID(ctx, id)
	if err != nil {
		return err
	}

	if flow.Status == models.FlowStatusActive {
		return &ServiceError{Op: "DeleteFlow", Code: "flow_active", Message: "deactivate the flow before deleting", Err: ErrCannotModifyActive}
	}

	return s.store.DeleteFlow(ctx, id)
}

func (s *Flow) validateFlow(flow *models.FlowDefinition) error {
	if err := s.validate.Struct(flow); err != nil {
		return NewValidationError("validateFlow", "invalid_flow", err.Error(), ErrInvalidRequest)
	}

	if len(flow.Nodes) == 0 {
		return NewValidationError("validateFlow", "nodes_required", "flow must have at least one node", ErrNodesRequired)
	}

	for _, node := range flow.Nodes {
		if err := validateNodeConfig(node); err != nil {
			return NewValidationError("validateFlow", "invalid_node_config", err.Error(), ErrInvalidConfig)
		}
	}

	if err := flow.ValidateGraph(); err != nil {
		return NewValidationError("validateFlow", "invalid_graph", err.Error(), fmt.Errorf("%w: %w", ErrInvalidGraph, err))
	}

	return nil
}
