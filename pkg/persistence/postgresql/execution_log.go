package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dineflow/dineflow/pkg/models"
)

// ExecutionLogRepository handles the append-only execution audit log.
type ExecutionLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionLogRepository creates a new execution log repository.
func NewExecutionLogRepository(db *sql.DB, logger *slog.Logger) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db, logger: logger}
}

// Append writes one immutable log entry. There is no update path.
func (r *ExecutionLogRepository) Append(ctx context.Context, entry *models.ExecutionLogEntry) error {
	query := `
		INSERT INTO execution_log (id, execution_id, flow_id, node_id, node_kind,
			outcome, attempt, error_detail, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ExecutionID,
		entry.FlowID,
		entry.NodeID,
		entry.NodeKind,
		entry.Outcome,
		entry.Attempt,
		entry.ErrorDetail,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}

	return nil
}

// GetByExecution returns all entries of an execution in timestamp order.
func (r *ExecutionLogRepository) GetByExecution(ctx context.Context, executionID string) ([]*models.ExecutionLogEntry, error) {
	query := `
		SELECT
			id
		  , execution_id
		  , flow_id
		  , node_id
		  , node_kind
		  , outcome
		  , attempt
		  , error_detail
		  , recorded_at
		FROM execution_log
		WHERE execution_id = $1
		ORDER BY recorded_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.ExecutionLogEntry, 0)

	for rows.Next() {
		var entry models.ExecutionLogEntry

		err := rows.Scan(
			&entry.ID,
			&entry.ExecutionID,
			&entry.FlowID,
			&entry.NodeID,
			&entry.NodeKind,
			&entry.Outcome,
			&entry.Attempt,
			&entry.ErrorDetail,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}

		entries = append(entries, &entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating log entries: %w", err)
	}

	return entries, nil
}

// FlowStats aggregates the counters for a flow from the execution records
// plus the trigger-stage failures that never produced an execution row.
func (r *ExecutionLogRepository) FlowStats(ctx context.Context, flowID string) (*models.FlowStats, error) {
	stats := &models.FlowStats{FlowID: flowID}

	executionQuery := `
		SELECT
			COUNT(*)
		  , COUNT(*) FILTER (WHERE status = 'completed')
		  , COUNT(*) FILTER (WHERE status = 'failed')
		  , COUNT(*) FILTER (WHERE status = 'failed' AND failure_reason = $2)
		FROM executions
		WHERE flow_id = $1
	`

	err := r.db.QueryRowContext(ctx, executionQuery, flowID, models.LogDetailCycleDetected).Scan(
		&stats.TotalExecutions,
		&stats.SuccessCount,
		&stats.FailureCount,
		&stats.StructuralCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate execution stats: %w", err)
	}

	// Trigger-stage failures have no execution record but still count.
	var triggerFailures int

	triggerQuery := `
		SELECT COUNT(*)
		FROM execution_log
		WHERE flow_id = $1 AND execution_id = '' AND outcome = 'failed'
	`

	err = r.db.QueryRowContext(ctx, triggerQuery, flowID).Scan(&triggerFailures)
	if err != nil {
		return nil, fmt.Errorf("failed to count trigger failures: %w", err)
	}

	stats.TotalExecutions += triggerFailures
	stats.FailureCount += triggerFailures

	return stats, nil
}
