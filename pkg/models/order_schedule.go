package models

import (
	"errors"
	"time"
)

// ErrInvalidOrderSchedule is returned when order schedule validation fails.
var ErrInvalidOrderSchedule = errors.New("invalid order schedule")

// OrderSchedule is a time-based event source: a customer's scheduled order
// (e.g. a pickup slot) whose reminder should fire a trigger event once the
// configured lead time before the slot has elapsed. RemindAt is precomputed so
// the scheduler can query due reminders directly, without individual timers.
type OrderSchedule struct {
	ID          string    `json:"id"           validate:"required"`
	OrderID     string    `json:"order_id"     validate:"required"`
	Recipient   Recipient `json:"recipient"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	RemindAt    time.Time `json:"remind_at"`
	Reminded    bool      `json:"reminded"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewOrderSchedule creates a schedule with RemindAt derived from the pickup
// slot and the reminder lead time.
func NewOrderSchedule(id, orderID string, recipient Recipient, scheduledAt time.Time, lead time.Duration) (*OrderSchedule, error) {
	if id == "" || orderID == "" {
		return nil, ErrInvalidOrderSchedule
	}

	if scheduledAt.IsZero() {
		return nil, ErrInvalidOrderSchedule
	}

	now := time.Now().UTC()

	return &OrderSchedule{
		ID:          id,
		OrderID:     orderID,
		Recipient:   recipient,
		ScheduledAt: scheduledAt,
		RemindAt:    scheduledAt.Add(-lead),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsDue reports whether the reminder should fire at now. Schedules whose slot
// has already passed are not due; there is nothing left to remind about.
func (s *OrderSchedule) IsDue(now time.Time) bool {
	if s.Reminded {
		return false
	}

	if now.After(s.ScheduledAt) {
		return false
	}

	return !s.RemindAt.After(now)
}
