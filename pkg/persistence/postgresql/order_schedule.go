package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dineflow/dineflow/pkg/models"
)

// OrderScheduleRepository handles upcoming scheduled orders.
type OrderScheduleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewOrderScheduleRepository creates a new order schedule repository.
func NewOrderScheduleRepository(db *sql.DB, logger *slog.Logger) *OrderScheduleRepository {
	return &OrderScheduleRepository{db: db, logger: logger}
}

// Save creates or replaces an order schedule.
func (r *OrderScheduleRepository) Save(ctx context.Context, schedule *models.OrderSchedule) error {
	recipientJSON, err := json.Marshal(schedule.Recipient)
	if err != nil {
		return fmt.Errorf("failed to marshal recipient: %w", err)
	}

	query := `
		INSERT INTO order_schedules (id, order_id, recipient, scheduled_at, remind_at,
			reminded, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			scheduled_at = EXCLUDED.scheduled_at,
			remind_at = EXCLUDED.remind_at,
			reminded = EXCLUDED.reminded,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.OrderID,
		recipientJSON,
		schedule.ScheduledAt,
		schedule.RemindAt,
		schedule.Reminded,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save order schedule: %w", err)
	}

	return nil
}

// GetDue returns schedules whose reminder should fire at now. Schedules whose
// slot has already passed are excluded; there is nothing left to remind about.
func (r *OrderScheduleRepository) GetDue(ctx context.Context, now time.Time) ([]*models.OrderSchedule, error) {
	query := `
		SELECT
			id
		  , order_id
		  , recipient
		  , scheduled_at
		  , remind_at
		  , reminded
		  , created_at
		  , updated_at
		FROM order_schedules
		WHERE NOT reminded
		  AND remind_at <= $1
		  AND scheduled_at >= $1
		ORDER BY remind_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query order schedules: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	schedules := make([]*models.OrderSchedule, 0)

	for rows.Next() {
		var (
			schedule      models.OrderSchedule
			recipientJSON []byte
		)

		err := rows.Scan(
			&schedule.ID,
			&schedule.OrderID,
			&recipientJSON,
			&schedule.ScheduledAt,
			&schedule.RemindAt,
			&schedule.Reminded,
			&schedule.CreatedAt,
			&schedule.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order schedule: %w", err)
		}

		if err := json.Unmarshal(recipientJSON, &schedule.Recipient); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recipient: %w", err)
		}

		schedules = append(schedules, &schedule)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating order schedules: %w", err)
	}

	return schedules, nil
}

// MarkReminded atomically claims a schedule for reminding. Only one of any
// number of concurrent claimants sees true.
func (r *OrderScheduleRepository) MarkReminded(ctx context.Context, scheduleID string) (bool, error) {
	query := `
		UPDATE order_schedules
		SET reminded = TRUE, updated_at = $2
		WHERE id = $1 AND NOT reminded
	`

	result, err := r.db.ExecContext(ctx, query, scheduleID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to mark schedule reminded: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected == 1, nil
}
