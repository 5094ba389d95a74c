package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dineflow/dineflow/pkg/models"
	"github.com/dineflow/dineflow/pkg/persistence"
)

// ExecutionRepository handles execution state database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id
  , flow_id
  , event_name
  , event_payload
  , recipient
  , current_node_id
  , status
  , wait_reason
  , failure_reason
  , resume_at
  , resumed_at
  , created_at
  , updated_at
`

// Save creates or replaces an execution record.
func (r *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	payloadJSON, err := json.Marshal(execution.EventPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	recipientJSON, err := json.Marshal(execution.Recipient)
	if err != nil {
		return fmt.Errorf("failed to marshal recipient: %w", err)
	}

	query := `
		INSERT INTO executions (id, flow_id, event_name, event_payload, recipient,
			current_node_id, status, wait_reason, failure_reason, resume_at, resumed_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			current_node_id = EXCLUDED.current_node_id,
			status = EXCLUDED.status,
			wait_reason = EXCLUDED.wait_reason,
			failure_reason = EXCLUDED.failure_reason,
			resume_at = EXCLUDED.resume_at,
			resumed_at = EXCLUDED.resumed_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.FlowID,
		execution.EventName,
		payloadJSON,
		recipientJSON,
		execution.CurrentNodeID,
		execution.Status,
		execution.WaitReason,
		execution.FailureReason,
		execution.ResumeAt,
		execution.ResumedAt,
		execution.CreatedAt,
		execution.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	return nil
}

// GetByID returns an execution by its ID.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	execution, err := r.scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

// GetByFlow returns all executions of a flow, newest first.
func (r *ExecutionRepository) GetByFlow(ctx context.Context, flowID string) ([]*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE flow_id = $1 ORDER BY created_at DESC`

	return r.queryExecutions(ctx, query, flowID)
}

// GetDue returns suspended executions whose resume time falls within the
// tolerance window around now.
func (r *ExecutionRepository) GetDue(ctx context.Context, now time.Time, tolerance time.Duration) ([]*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE status = 'suspended'
		  AND resumed_at IS NULL
		  AND resume_at <= $1
		ORDER BY resume_at ASC
	`

	return r.queryExecutions(ctx, query, now.Add(tolerance))
}

// ClaimResumption atomically stamps the resumed marker on a still-suspended
// execution. The WHERE clause is the whole idempotency mechanism: of any
// number of concurrent claimants exactly one update matches a row.
func (r *ExecutionRepository) ClaimResumption(ctx context.Context, executionID string, now time.Time) (bool, error) {
	query := `
		UPDATE executions
		SET resumed_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'suspended' AND resumed_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, executionID, now)
	if err != nil {
		return false, fmt.Errorf("failed to claim resumption: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected == 1, nil
}

func (r *ExecutionRepository) queryExecutions(ctx context.Context, query string, args ...any) ([]*models.Execution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := r.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func (r *ExecutionRepository) scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution     models.Execution
		payloadJSON   []byte
		recipientJSON []byte
		resumeAt      sql.NullTime
		resumedAt     sql.NullTime
	)

	err := row.Scan(
		&execution.ID,
		&execution.FlowID,
		&execution.EventName,
		&payloadJSON,
		&recipientJSON,
		&execution.CurrentNodeID,
		&execution.Status,
		&execution.WaitReason,
		&execution.FailureReason,
		&resumeAt,
		&resumedAt,
		&execution.CreatedAt,
		&execution.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payloadJSON, &execution.EventPayload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
	}

	if err := json.Unmarshal(recipientJSON, &execution.Recipient); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipient: %w", err)
	}

	if resumeAt.Valid {
		execution.ResumeAt = &resumeAt.Time
	}

	if resumedAt.Valid {
		execution.ResumedAt = &resumedAt.Time
	}

	return &execution, nil
}
