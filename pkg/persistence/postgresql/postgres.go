// Package postgresql provides PostgreSQL persistence for flow definitions,
// executions, the execution log and order schedules.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/dineflow/dineflow/pkg/models"
	"github.com/dineflow/dineflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	flowRepo     *FlowRepository
	execRepo     *ExecutionRepository
	logRepo      *ExecutionLogRepository
	scheduleRepo *OrderScheduleRepository
}

// NewPersistence opens the database, runs pending migrations and returns the
// persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:           database,
		logger:       logger,
		flowRepo:     NewFlowRepository(database, logger),
		execRepo:     NewExecutionRepository(database, logger),
		logRepo:      NewExecutionLogRepository(database, logger),
		scheduleRepo: NewOrderScheduleRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Flows(ctx context.Context) ([]*models.FlowDefinition, error) {
	return p.flowRepo.GetAll(ctx)
}

func (p *Persistence) ActiveFlows(ctx context.Context) ([]*models.FlowDefinition, error) {
	return p.flowRepo.GetByStatus(ctx, models.FlowStatusActive)
}

func (p *Persistence) FlowByID(ctx context.Context, id string) (*models.FlowDefinition, error) {
	return p.flowRepo.GetByID(ctx, id)
}

func (p *Persistence) SaveFlow(ctx context.Context, flow *models.FlowDefinition) error {
	return p.flowRepo.Save(ctx, flow)
}

func (p *Persistence) DeleteFlow(ctx context.Context, id string) error {
	return p.flowRepo.Delete(ctx, id)
}

func (p *Persistence) SaveExecution(ctx context.Context, execution *models.Execution) error {
	return p.execRepo.Save(ctx, execution)
}

func (p *Persistence) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	return p.execRepo.GetByID(ctx, id)
}

func (p *Persistence) ExecutionsByFlow(ctx context.Context, flowID string) ([]*models.Execution, error) {
	return p.execRepo.GetByFlow(ctx, flowID)
}

func (p *Persistence) DueExecutions(ctx context.Context, now time.Time, tolerance time.Duration) ([]*models.Execution, error) {
	return p.execRepo.GetDue(ctx, now, tolerance)
}

func (p *Persistence) ClaimResumption(ctx context.Context, executionID string, now time.Time) (bool, error) {
	return p.execRepo.ClaimResumption(ctx, executionID, now)
}

func (p *Persistence) AppendLogEntry(ctx context.Context, entry *models.ExecutionLogEntry) error {
	return p.logRepo.Append(ctx, entry)
}

func (p *Persistence) LogEntries(ctx context.Context, executionID string) ([]*models.ExecutionLogEntry, error) {
	return p.logRepo.GetByExecution(ctx, executionID)
}

func (p *Persistence) FlowStats(ctx context.Context, flowID string) (*models.FlowStats, error) {
	return p.logRepo.FlowStats(ctx, flowID)
}

func (p *Persistence) SaveOrderSchedule(ctx context.Context, schedule *models.OrderSchedule) error {
	return p.scheduleRepo.Save(ctx, schedule)
}

func (p *Persistence) DueOrderSchedules(ctx context.Context, now time.Time) ([]*models.OrderSchedule, error) {
	return p.scheduleRepo.GetDue(ctx, now)
}

func (p *Persistence) MarkReminded(ctx context.Context, scheduleID string) (bool, error) {
	return p.scheduleRepo.MarkReminded(ctx, scheduleID)
}
