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

// flowGraph is the JSONB form of the nodes and edges of a flow. Storing the
// graph as one document keeps reads to a single row and mirrors the engine's
// read-the-whole-definition access pattern.
type flowGraph struct {
	Nodes []*models.Node `json:"nodes"`
	Edges []*models.Edge `json:"edges"`
}

// FlowRepository handles flow definition database operations.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

const flowColumns = `
	id
  , name
  , description
  , status
  , graph
  , owner
  , created_at
  , updated_at
`

// GetAll returns all flow definitions.
func (r *FlowRepository) GetAll(ctx context.Context) ([]*models.FlowDefinition, error) {
	query := `SELECT ` + flowColumns + ` FROM flows ORDER BY created_at DESC`

	return r.queryFlows(ctx, query)
}

// GetByStatus returns the flow definitions in the given lifecycle state.
func (r *FlowRepository) GetByStatus(ctx context.Context, status models.FlowStatus) ([]*models.FlowDefinition, error) {
	query := `SELECT ` + flowColumns + ` FROM flows WHERE status = $1 ORDER BY created_at DESC`

	return r.queryFlows(ctx, query, status)
}

// GetByID returns a flow definition by its ID.
func (r *FlowRepository) GetByID(ctx context.Context, id string) (*models.FlowDefinition, error) {
	query := `SELECT ` + flowColumns + ` FROM flows WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	flow, err := r.scanFlow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrFlowNotFound
		}

		return nil, fmt.Errorf("failed to scan flow: %w", err)
	}

	return flow, nil
}

// Save creates or replaces a flow definition.
func (r *FlowRepository) Save(ctx context.Context, flow *models.FlowDefinition) error {
	now := time.Now().UTC()

	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	graphJSON, err := json.Marshal(flowGraph{Nodes: flow.Nodes, Edges: flow.Edges})
	if err != nil {
		return fmt.Errorf("failed to marshal flow graph: %w", err)
	}

	query := `
		INSERT INTO flows (id, name, description, status, graph, owner, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			graph = EXCLUDED.graph,
			owner = EXCLUDED.owner,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		flow.ID,
		flow.Name,
		flow.Description,
		flow.Status,
		graphJSON,
		flow.Owner,
		flow.CreatedAt,
		flow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save flow: %w", err)
	}

	return nil
}

// Delete removes a flow definition.
func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM flows WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.ErrFlowNotFound
	}

	return nil
}

func (r *FlowRepository) queryFlows(ctx context.Context, query string, args ...any) ([]*models.FlowDefinition, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	flows := make([]*models.FlowDefinition, 0)

	for rows.Next() {
		flow, err := r.scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flows = append(flows, flow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *FlowRepository) scanFlow(row rowScanner) (*models.FlowDefinition, error) {
	var (
		flow      models.FlowDefinition
		graphJSON []byte
	)

	err := row.Scan(
		&flow.ID,
		&flow.Name,
		&flow.Description,
		&flow.Status,
		&graphJSON,
		&flow.Owner,
		&flow.CreatedAt,
		&flow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	var graph flowGraph

	if err := json.Unmarshal(graphJSON, &graph); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow graph: %w", err)
	}

	flow.Nodes = graph.Nodes
	flow.Edges = graph.Edges

	return &flow, nil
}
