package file

import (
	"context"
	"os"

	"github.com/dineflow/dineflow/pkg/models"
	"github.com/dineflow/dineflow/pkg/persistence"
)

// Flows returns all flow definitions.
func (p *Persistence) Flows(_ context.Context) ([]*models.FlowDefinition, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids, err := p.listIDs(flowsDir)
	if err != nil {
		return []*models.FlowDefinition{}, nil
	}

	flows := make([]*models.FlowDefinition, 0, len(ids))

	for _, id := range ids {
		var flow models.FlowDefinition

		if err := p.readDocument(flowsDir, id, &flow); err != nil {
			return nil, persistence.NewStoreError("Flows", id, err)
		}

		flows = append(flows, &flow)
	}

	return flows, nil
}

// ActiveFlows returns only definitions eligible for trigger matching.
func (p *Persistence) ActiveFlows(ctx context.Context) ([]*models.FlowDefinition, error) {
	flows, err := p.Flows(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]*models.FlowDefinition, 0, len(flows))

	for _, flow := range flows {
		if flow.IsActive() {
			active = append(active, flow)
		}
	}

	return active, nil
}

// FlowByID returns a flow definition by id.
func (p *Persistence) FlowByID(_ context.Context, id string) (*models.FlowDefinition, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var flow models.FlowDefinition

	err := p.readDocument(flowsDir, id, &flow)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrFlowNotFound
		}

		return nil, persistence.NewStoreError("FlowByID", id, err)
	}

	return &flow, nil
}

// SaveFlow creates or replaces a flow definition.
func (p *Persistence) SaveFlow(_ context.Context, flow *models.FlowDefinition) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.writeDocument(flowsDir, flow.ID, flow)
	if err != nil {
		return persistence.NewStoreError("SaveFlow", flow.ID, err)
	}

	return nil
}

// DeleteFlow removes a flow definition.
func (p *Persistence) DeleteFlow(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.deleteDocument(flowsDir, id)
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.ErrFlowNotFound
		}

		return persistence.NewStoreError("DeleteFlow", id, err)
	}

	return nil
}
