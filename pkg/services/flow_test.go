package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dineflow/dineflow/pkg/models"
	"github.com/dineflow/dineflow/pkg/persistence"
	"github.com/dineflow/dineflow/pkg/persistence/file"
)

func validFlow() *models.FlowDefinition {
	return &models.FlowDefinition{
		Name:   "Welcome Series",
		Status: models.FlowStatusDraft,
		Nodes: []*models.Node{
			{ID: "t1", Kind: models.NodeKindTrigger, Name: "On Order", Config: map[string]any{"event_name": "order_created"}},
			{ID: "a1", Kind: models.NodeKindAction, Name: "Send Email", Config: map[string]any{"channel": "email", "template_id": "welcome"}},
		},
		Edges: []*models.Edge{{ID: "e1", SourceID: "t1", TargetID: "a1"}},
	}
}

func newFlowService(t *testing.T) (*Flow, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	return NewFlow(store), store
}

func TestFlow_CreateFlow(t *testing.T) {
	service, _ := newFlowService(t)

	created, err := service.CreateFlow(context.Background(), validFlow())
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.FlowStatusDraft, created.Status)
	assert.False(t, created.CreatedAt.IsZero())

	loaded, err := service.GetFlow(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Welcome Series", loaded.Name)
}

func TestFlow_CreateFlowValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.FlowDefinition)
	}{
		{
			name:   "name too short",
			mutate: func(f *models.FlowDefinition) { f.Name = "ab" },
		},
		{
			name:   "no nodes",
			mutate: func(f *models.FlowDefinition) { f.Nodes = nil; f.Edges = nil },
		},
		{
			name: "action missing template",
			mutate: func(f *models.FlowDefinition) {
				f.Nodes[1].Config = map[string]any{"channel": "email"}
			},
		},
		{
			name: "delay with bad unit",
			mutate: func(f *models.FlowDefinition) {
				f.Nodes = append(f.Nodes, &models.Node{
					ID: "d1", Kind: models.NodeKindDelay, Name: "Wait",
					Config: map[string]any{"value": 1, "unit": "weeks"},
				})
				f.Edges = append(f.Edges, &models.Edge{ID: "e2", SourceID: "a1", TargetID: "d1"})
			},
		},
		{
			name: "unreachable node",
			mutate: func(f *models.FlowDefinition) {
				f.Nodes = append(f.Nodes, &models.Node{
					ID: "orphan", Kind: models.NodeKindAction, Name: "Orphan",
					Config: map[string]any{"channel": "sms", "template_id": "x"},
				})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _ := newFlowService(t)

			flow := validFlow()
			tt.mutate(flow)

			_, err := service.CreateFlow(context.Background(), flow)
			require.Error(t, err)
			assert.True(t, IsValidationError(err), "expected a validation error, got %v", err)
		})
	}
}

func TestFlow_CreateFlowNil(t *testing.T) {
	service, _ := newFlowService(t)

	_, err := service.CreateFlow(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFlowNil)
}

func TestFlow_UpdateFlow(t *testing.T) {
	service, _ := newFlowService(t)
	ctx := context.Background()

	created, err := service.CreateFlow(ctx, validFlow())
	require.NoError(t, err)

	updated := validFlow()
	updated.Name = "Welcome Series v2"

	result, err := service.UpdateFlow(ctx, created.ID, updated)
	require.NoError(t, err)

	assert.Equal(t, created.ID, result.ID)
	assert.Equal(t, "Welcome Series v2", result.Name)
	assert.Equal(t, models.FlowStatusDraft, result.Status)
	assert.Equal(t, created.CreatedAt, result.CreatedAt)
}

func TestFlow_UpdateActiveFlowRejected(t *testing.T) {
	service, _ := newFlowService(t)
	ctx := context.Background()

	created, err := service.CreateFlow(ctx, validFlow())
	require.NoError(t, err)

	_, err = service.ActivateFlow(ctx, created.ID)
	require.NoError(t, err)

	_, err = service.UpdateFlow(ctx, created.ID, validFlow())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCannotModifyActive)
	assert.True(t, IsConflictError(err))
}

func TestFlow_ActivateAndDeactivate(t *testing.T) {
	service, _ := newFlowService(t)
	ctx := context.Background()

	created, err := service.CreateFlow(ctx, validFlow())
	require.NoError(t, err)

	activated, err := service.ActivateFlow(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FlowStatusActive, activated.Status)

	deactivated, err := service.DeactivateFlow(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FlowStatusInactive, deactivated.Status)
}

func TestFlow_ActivateInvalidGraphRejected(t *testing.T) {
	service, store := newFlowService(t)
	ctx := context.Background()

	// A structurally broken definition written around the service, as if a
	// migration or manual edit corrupted it.
	flow := validFlow()
	flow.ID = "flow-broken"
	flow.Edges = append(flow.Edges, &models.Edge{ID: "e2", SourceID: "a1", TargetID: "ghost"})
	require.NoError(t, store.SaveFlow(ctx, flow))

	_, err := service.ActivateFlow(ctx, "flow-broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestFlow_DeleteFlow(t *testing.T) {
	service, _ := newFlowService(t)
	ctx := context.Background()

	created, err := service.CreateFlow(ctx, validFlow())
	require.NoError(t, err)

	require.NoError(t, service.DeleteFlow(ctx, created.ID))

	_, err = service.GetFlow(ctx, created.ID)
	assert.ErrorIs(t, err, persistence.ErrFlowNotFound)
}

func TestFlow_DeleteActiveFlowRejected(t *testing.T) {
	service, _ := newFlowService(t)
	ctx := context.Background()

	created, err := service.CreateFlow(ctx, validFlow())
	require.NoError(t, err)

	_, err = service.ActivateFlow(ctx, created.ID)
	require.NoError(t, err)

	err = service.DeleteFlow(ctx, created.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCannotModifyActive)
}
