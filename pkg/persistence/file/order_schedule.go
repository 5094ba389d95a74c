package file

import (
	"context"
	"os"
	"time"

	"github.com/dineflow/dineflow/pkg/models"
	"github.com/dineflow/dineflow/pkg/persistence"
)

// SaveOrderSchedule creates or replaces an order schedule document.
func (p *Persistence) SaveOrderSchedule(_ context.Context, schedule *models.OrderSchedule) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.writeDocument(schedulesDir, schedule.ID, schedule)
	if err != nil {
		return persistence.NewStoreError("SaveOrderSchedule", schedule.ID, err)
	}

	return nil
}

// DueOrderSchedules returns unreminded schedules whose reminder time has come.
func (p *Persistence) DueOrderSchedules(_ context.Context, now time.Time) ([]*models.OrderSchedule, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids, err := p.listIDs(schedulesDir)
	if err != nil {
		return []*models.OrderSchedule{}, nil
	}

	due := make([]*models.OrderSchedule, 0)

	for _, id := range ids {
		var schedule models.OrderSchedule

		if err := p.readDocument(schedulesDir, id, &schedule); err != nil {
			return nil, persistence.NewStoreError("DueOrderSchedules", id, err)
		}

		if schedule.IsDue(now) {
			due = append(due, &schedule)
		}
	}

	return due, nil
}

// MarkReminded flips the reminded flag, reporting whether this caller made
// the transition. The store lock makes the read-check-write atomic.
func (p *Persistence) MarkReminded(_ context.Context, scheduleID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var schedule models.OrderSchedule

	err := p.readDocument(schedulesDir, scheduleID, &schedule)
	if err != nil {
		if os.IsNotExist(err) {
			return false, persistence.ErrScheduleNotFound
		}

		return false, persistence.NewStoreError("MarkReminded", scheduleID, err)
	}

	if schedule.Reminded {
		return false, nil
	}

	schedule.Reminded = true
	schedule.UpdatedAt = time.Now().UTC()

	err = p.writeDocument(schedulesDir, scheduleID, &schedule)
	if err != nil {
		return false, persistence.NewStoreError("MarkReminded", scheduleID, err)
	}

	return true, nil
}
