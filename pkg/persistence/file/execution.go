package file

import (
	"context"
	"os"
	"time"

	"github.com/dineflow/dineflow/pkg/models"
	"github.com/dineflow/dineflow/pkg/persistence"
)

// SaveExecution creates or replaces an execution document.
func (p *Persistence) SaveExecution(_ context.Context, execution *models.Execution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.writeDocument(executionsDir, execution.ID, execution)
	if err != nil {
		return persistence.NewStoreError("SaveExecution", execution.ID, err)
	}

	return nil
}

// ExecutionByID returns an execution by id.
func (p *Persistence) ExecutionByID(_ context.Context, id string) (*models.Execution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.readExecution(id)
}

func (p *Persistence) readExecution(id string) (*models.Execution, error) {
	var execution models.Execution

	err := p.readDocument(executionsDir, id, &execution)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, persistence.NewStoreError("ExecutionByID", id, err)
	}

	return &execution, nil
}

// ExecutionsByFlow returns every execution spawned by the given flow.
func (p *Persistence) ExecutionsByFlow(_ context.Context, flowID string) ([]*models.Execution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids, err := p.listIDs(executionsDir)
	if err != nil {
		return []*models.Execution{}, nil
	}

	executions := make([]*models.Execution, 0)

	for _, id := range ids {
		execution, err := p.readExecution(id)
		if err != nil {
			return nil, err
		}

		if execution.FlowID == flowID {
			executions = append(executions, execution)
		}
	}

	return executions, nil
}

// DueExecutions returns suspended executions whose resume time falls within
// the tolerance window around now.
func (p *Persistence) DueExecutions(_ context.Context, now time.Time, tolerance time.Duration) ([]*models.Execution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids, err := p.listIDs(executionsDir)
	if err != nil {
		return []*models.Execution{}, nil
	}

	due := make([]*models.Execution, 0)

	for _, id := range ids {
		execution, err := p.readExecution(id)
		if err != nil {
			return nil, err
		}

		if execution.IsDue(now, tolerance) {
			due = append(due, execution)
		}
	}

	return due, nil
}

// ClaimResumption stamps the resumed marker on a still-suspended, unclaimed
// execution. The store lock makes the read-check-write atomic.
func (p *Persistence) ClaimResumption(_ context.Context, executionID string, now time.Time) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	execution, err := p.readExecution(executionID)
	if err != nil {
		return false, err
	}

	if execution.Status != models.ExecutionStatusSuspended || execution.ResumedAt != nil {
		return false, nil
	}

	resumedAt := now.UTC()
	execution.ResumedAt = &resumedAt
	execution.UpdatedAt = resumedAt

	err = p.writeDocument(executionsDir, executionID, execution)
	if err != nil {
		return false, persistence.NewStoreError("ClaimResumption", executionID, err)
	}

	return true, nil
}
