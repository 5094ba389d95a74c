package file

import (
	"context"
	"sort"

	"github.com/dineflow/dineflow/pkg/models"
	"github.com/dineflow/dineflow/pkg/persistence"
)

// AppendLogEntry writes one immutable log entry document. Entries are never
// rewritten; the entry id is the file name.
func (p *Persistence) AppendLogEntry(_ context.Context, entry *models.ExecutionLogEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.writeDocument(logDir, entry.ID, entry)
	if err != nil {
		return persistence.NewStoreError("AppendLogEntry", entry.ID, err)
	}

	return nil
}

// LogEntries returns all entries for an execution in timestamp order.
func (p *Persistence) LogEntries(_ context.Context, executionID string) ([]*models.ExecutionLogEntry, error) {
	entries, err := p.allLogEntries()
	if err != nil {
		return nil, err
	}

	matched := make([]*models.ExecutionLogEntry, 0)

	for _, entry := range entries {
		if entry.ExecutionID == executionID {
			matched = append(matched, entry)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})

	return matched, nil
}

// FlowStats recomputes aggregate counters for a flow from the log and the
// execution records. Full-scan recomputation keeps the counters rebuildable;
// acceptable for the file store's scale.
func (p *Persistence) FlowStats(ctx context.Context, flowID string) (*models.FlowStats, error) {
	stats := &models.FlowStats{FlowID: flowID}

	executions, err := p.ExecutionsByFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}

	stats.TotalExecutions = len(executions)

	for _, execution := range executions {
		switch execution.Status {
		case models.ExecutionStatusCompleted:
			stats.SuccessCount++
		case models.ExecutionStatusFailed:
			stats.FailureCount++

			if execution.FailureReason == models.LogDetailCycleDetected {
				stats.StructuralCount++
			}
		}
	}

	entries, err := p.allLogEntries()
	if err != nil {
		return nil, err
	}

	// Trigger-stage failures have no execution record but still count.
	for _, entry := range entries {
		if entry.FlowID == flowID && entry.ExecutionID == "" && entry.Outcome == models.LogOutcomeFailed {
			stats.TotalExecutions++
			stats.FailureCount++
		}
	}

	return stats, nil
}

func (p *Persistence) allLogEntries() ([]*models.ExecutionLogEntry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids, err := p.listIDs(logDir)
	if err != nil {
		return []*models.ExecutionLogEntry{}, nil
	}

	entries := make([]*models.ExecutionLogEntry, 0, len(ids))

	for _, id := range ids {
		var entry models.ExecutionLogEntry

		if err := p.readDocument(logDir, id, &entry); err != nil {
			return nil, persistence.NewStoreError("LogEntries", id, err)
		}

		entries = append(entries, &entry)
	}

	return entries, nil
}
